package questions

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/parser"
	"github.com/dotcommander/storyteller/internal/render"
	"github.com/dotcommander/storyteller/internal/state"
)

const (
	questionRequest   = "Creame preguntas para el siguiente cuento:\n\n"
	aggregateRequest  = "Elige una pregunta por página para el siguiente cuento a partir de las propuestas.\n\n"
	supervisorRequest = "Coordina la creación de preguntas para el cuento."
)

func questionerPre(_ context.Context, s state.Information) ([]llm.Message, error) {
	return []llm.Message{llm.User(questionRequest + render.Book(s.OriginalBook))}, nil
}

// questionerPost adds the proposed questions to the pool.
func questionerPost(_ context.Context, _ state.Information, reply llm.Message) (state.Information, error) {
	book, err := parser.ParseBook(reply.Content)
	if err != nil {
		return state.Information{}, err
	}
	return state.Information{QuestionsBooks: []*domain.Book{book}}, nil
}

func aggregatorPre(_ context.Context, s state.Information) ([]llm.Message, error) {
	var sb strings.Builder
	sb.WriteString(aggregateRequest)
	sb.WriteString("**Cuento**:\n")
	sb.WriteString(render.Book(s.OriginalBook))
	for i, b := range s.QuestionsBooks {
		fmt.Fprintf(&sb, "\n\n**Propuesta %d**:\n", i+1)
		sb.WriteString(render.Book(b))
	}
	return []llm.Message{llm.User(sb.String())}, nil
}

// aggregatorPost publishes the original story with the selected questions.
func aggregatorPost(_ context.Context, s state.Information, reply llm.Message) (state.Information, error) {
	selected, err := parser.ParseBook(reply.Content)
	if err != nil {
		return state.Information{}, err
	}
	return state.Information{ModifiedBook: MergeQuestions(s.OriginalBook, selected)}, nil
}

// MergeQuestions returns a copy of story where each page gains, as a
// question, the first content of the matching page of selected. Pages are
// matched by position; extra pages on either side are left alone.
func MergeQuestions(story, selected *domain.Book) *domain.Book {
	out := story.Clone()
	if out == nil || selected == nil {
		return out
	}
	for i := range min(len(out.Pages), len(selected.Pages)) {
		contents := selected.Pages[i].Contents
		if len(contents) == 0 {
			continue
		}
		out.Pages[i].Contents = append(out.Pages[i].Contents, domain.Content{
			Type: domain.ContentQuestion,
			Text: contents[0].Text,
		})
	}
	return out
}
