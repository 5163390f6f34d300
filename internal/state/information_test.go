package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/llm"
)

func TestMergeReducers(t *testing.T) {
	original := domain.NewBook("Original")
	first := domain.NewBook("Primera")
	second := domain.NewBook("Segunda")

	base := Information{
		Messages:          []llm.Message{llm.User("hola")},
		Preferences:       []domain.Preference{{Type: "Animal", Value: "Gato"}},
		OriginalBook:      original,
		IntermediateBooks: []*domain.Book{first},
		Evaluations:       []domain.Evaluation{{Label: "A"}},
		Query:             "¿coherente?",
		EditionRounds:     2,
	}

	update := Information{
		Messages:          []llm.Message{llm.Assistant("respuesta")},
		ModifiedBook:      second,
		IntermediateBooks: []*domain.Book{second},
		Evaluations:       []domain.Evaluation{{Label: "B"}},
		EditionRounds:     1,
	}

	out := base.Merge(update)

	assert.Len(t, out.Messages, 2)
	assert.Equal(t, []*domain.Book{first, second}, out.IntermediateBooks)
	assert.Equal(t, []domain.Evaluation{{Label: "A"}, {Label: "B"}}, out.Evaluations)
	assert.Same(t, original, out.OriginalBook)
	assert.Same(t, second, out.ModifiedBook)
	assert.Equal(t, base.Preferences, out.Preferences)
	assert.Equal(t, "¿coherente?", out.Query)
	assert.Equal(t, 2, out.EditionRounds)

	// base is untouched
	assert.Len(t, base.Messages, 1)
	assert.Nil(t, base.ModifiedBook)
}

func TestMergeEmptyUpdateIsIdentity(t *testing.T) {
	base := Information{
		Messages:      []llm.Message{llm.User("x")},
		OriginalBook:  domain.NewBook("x"),
		EditionRounds: 1,
	}
	assert.Equal(t, base, base.Merge(Information{}))
}

func TestCloneIsIndependent(t *testing.T) {
	base := Information{Evaluations: []domain.Evaluation{{Label: "A"}}}
	c := base.Clone()
	c.Evaluations[0].Label = "Z"
	c.Evaluations = append(c.Evaluations, domain.Evaluation{Label: "B"})

	assert.Equal(t, "A", base.Evaluations[0].Label)
	assert.Len(t, base.Evaluations, 1)
}

func TestAccessors(t *testing.T) {
	var empty Information
	_, ok := empty.LastEvaluation()
	assert.False(t, ok)
	_, ok = empty.LastMessage()
	assert.False(t, ok)
	assert.Nil(t, empty.CurrentBook())

	original := domain.NewBook("o")
	modified := domain.NewBook("m")
	s := Information{
		OriginalBook: original,
		Evaluations:  []domain.Evaluation{{Label: "A"}, {Label: "B"}},
		Messages:     []llm.Message{llm.User("1"), llm.User("2")},
	}
	e, ok := s.LastEvaluation()
	assert.True(t, ok)
	assert.Equal(t, "B", e.Label)
	m, _ := s.LastMessage()
	assert.Equal(t, "2", m.Content)
	assert.Same(t, original, s.CurrentBook())

	s.ModifiedBook = modified
	assert.Same(t, modified, s.CurrentBook())
}
