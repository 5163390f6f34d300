package questions

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/prompt"
	"github.com/dotcommander/storyteller/internal/state"
)

const (
	kwRecall     = "tipo de pregunta: r: recall"
	kwWh         = "tipo de pregunta: w: wh-questions"
	kwAggregator = "elige la mejor pregunta"
	kwSupervisor = "coordinas a un equipo"

	recallReply = "# Caperucita\n---\nPregunta: ¿Adónde iba la niña?\n---\nPregunta: ¿A quién encontró?\n"
	whReply     = "# Caperucita\n---\nPregunta: ¿Quién llevaba la cesta?\n---\nPregunta: ¿Dónde vivía el lobo?\n"
	chosenReply = "# Caperucita\n---\nPregunta: ¿Quién llevaba la cesta?\n---\nPregunta: ¿A quién encontró?\n---\nPregunta: sobra\n"
)

func story() *domain.Book {
	b := domain.NewBook("Caperucita")
	b.Pages = []domain.Page{
		{Contents: []domain.Content{{Type: domain.ContentNarrative, Text: "La niña caminaba con su cesta."}}},
		{Contents: []domain.Content{{Type: domain.ContentNarrative, Text: "En el bosque apareció un lobo."}}},
	}
	return b
}

func organization(cfg config.QuestionsConfig, mock *llm.MockClient) *Organization {
	return New(cfg, config.DefaultLimits(), prompt.New(""), mock)
}

func TestMergeQuestions(t *testing.T) {
	original := story()
	selected := domain.NewBook("x")
	selected.Pages = []domain.Page{
		{Contents: []domain.Content{{Type: domain.ContentQuestion, Text: "¿Qué llevaba?"}, {Text: "ignorada"}}},
		{},
		{Contents: []domain.Content{{Type: domain.ContentQuestion, Text: "sobra"}}},
	}

	out := MergeQuestions(original, selected)
	require.Len(t, out.Pages, 2)
	assert.Equal(t, original.ID(), out.ID())

	require.Len(t, out.Pages[0].Contents, 2)
	assert.Equal(t, domain.Content{Type: domain.ContentQuestion, Text: "¿Qué llevaba?"}, out.Pages[0].Contents[1])
	assert.Len(t, out.Pages[1].Contents, 1)

	// the input story is untouched
	assert.Len(t, original.Pages[0].Contents, 1)

	assert.Equal(t, original.Pages, MergeQuestions(original, nil).Pages)
	assert.Nil(t, MergeQuestions(nil, selected))
}

func TestQuestionersRunInParallel(t *testing.T) {
	mock := llm.NewMockClient().
		On(kwRecall, recallReply).
		On(kwWh, whReply).
		On(kwAggregator, chosenReply)

	cfg := config.DefaultConfig().Organizations.Questions
	cfg.Questioners = []string{Recall, Wh, Recall}

	r, err := organization(cfg, mock).Build()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recall_questioner", "wh_questioner", NodeAggregator}, r.Nodes())

	out, err := r.Invoke(context.Background(), state.Information{OriginalBook: story()})
	require.NoError(t, err)

	assert.Len(t, out.QuestionsBooks, 2)
	assert.Equal(t, 1, mock.CallsMatching(kwRecall))
	assert.Equal(t, 1, mock.CallsMatching(kwWh))
	assert.Equal(t, 1, mock.CallsMatching(kwAggregator))

	require.NotNil(t, out.ModifiedBook)
	require.Len(t, out.ModifiedBook.Pages, 2)
	assert.Equal(t, "¿Quién llevaba la cesta?", out.ModifiedBook.Pages[0].Contents[1].Text)
	assert.Equal(t, domain.ContentQuestion, out.ModifiedBook.Pages[1].Contents[1].Type)
	assert.Equal(t, "¿A quién encontró?", out.ModifiedBook.Pages[1].Contents[1].Text)

	for _, c := range mock.Calls() {
		system := strings.ToLower(c.System)
		switch {
		case strings.Contains(system, kwRecall):
			assert.Contains(t, c.System, "- The questions should help the child remember what has happened in the story")
			assert.Contains(t, c.Messages[0].Content, "La niña caminaba con su cesta.")
		case strings.Contains(system, kwAggregator):
			assert.Contains(t, c.System, "D: Distancing")
			msg := c.Messages[len(c.Messages)-1].Content
			assert.Contains(t, msg, "**Propuesta 1**")
			assert.Contains(t, msg, "**Propuesta 2**")
			assert.NotContains(t, msg, "**Propuesta 3**")
		}
	}
}

func TestSupervisorHandsWorkToQuestioners(t *testing.T) {
	mock := llm.NewMockClient().
		OnResponse(kwSupervisor,
			&llm.Response{ToolCalls: []llm.ToolCall{
				{ID: "t1", Name: "transfer_to_recall_questioner", Arguments: "{}"},
				{ID: "t2", Name: "transfer_to_wh_questioner", Arguments: "{}"},
			}},
			&llm.Response{Content: "Listo"},
		).
		On(kwRecall, recallReply).
		On(kwWh, whReply).
		On(kwAggregator, chosenReply)

	cfg := config.DefaultConfig().Organizations.Questions
	cfg.Questioners = []string{Recall, Wh}
	cfg.Supervised = true

	r, err := organization(cfg, mock).Build()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{NodeSupervisor, NodeAggregator}, r.Nodes())

	out, err := r.Invoke(context.Background(), state.Information{OriginalBook: story()})
	require.NoError(t, err)

	calls := mock.Calls()
	require.NotEmpty(t, calls)
	assert.Len(t, calls[0].Tools, 2)
	assert.Equal(t, 2, mock.CallsMatching(kwSupervisor))
	assert.Equal(t, 1, mock.CallsMatching(kwAggregator))

	assert.Len(t, out.QuestionsBooks, 2)
	require.NotNil(t, out.ModifiedBook)
	assert.Equal(t, "¿Quién llevaba la cesta?", out.ModifiedBook.Pages[0].Contents[1].Text)
}

func TestBuildRejectsUnknownQuestioner(t *testing.T) {
	cfg := config.DefaultConfig().Organizations.Questions

	cfg.Questioners = []string{"riddle"}
	_, err := organization(cfg, llm.NewMockClient()).Build()
	assert.ErrorIs(t, err, core.ErrConfiguration)

	cfg.Questioners = nil
	_, err = organization(cfg, llm.NewMockClient()).Build()
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestQuestionerParseErrorFailsRun(t *testing.T) {
	mock := llm.NewMockClient().On(kwRecall, "No sé qué preguntar.")

	cfg := config.DefaultConfig().Organizations.Questions
	cfg.Questioners = []string{Recall}

	r, err := organization(cfg, mock).Build()
	require.NoError(t, err)
	_, err = r.Invoke(context.Background(), state.Information{OriginalBook: story()})
	assert.ErrorIs(t, err, core.ErrParse)
	assert.Zero(t, mock.CallsMatching(kwAggregator))
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []string{"completion", "recall", "open_ended", "wh", "distancing"}, Kinds())

	c, ok := CriteriaFor(OpenEnded)
	require.True(t, ok)
	assert.Equal(t, domain.OpenEndedCriteria.Type, c.Type)

	_, ok = CriteriaFor("riddle")
	assert.False(t, ok)
}
