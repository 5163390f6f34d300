package personalization

import (
	"context"
	"strings"

	"github.com/dotcommander/storyteller/internal/agent"
	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/llm"
	"github.com/dotcommander/storyteller/internal/parser"
	"github.com/dotcommander/storyteller/internal/render"
	"github.com/dotcommander/storyteller/internal/role"
	"github.com/dotcommander/storyteller/internal/state"
)

const (
	personalizeRequest = "Porfavor, personaliza el siguiente libro segun mis preferencias: \n"
	editRequest        = "Después de hacer una evaluación de la personalización hecha por ti, se solicitaron las siguientes ediciones al cuento personalizado segun mis preferencias: \n"
	pairRequest        = "Porfavor, indica con una etiqueta (A o B) cuál cuento es mejor. Da tu respuesta **sin explicaciones adicionales**."
	labelRequest       = "Porfavor, asigna una etiqueta a la personalización de este cuento."

	originalHeader     = "**Cuento original**:\n"
	personalizedHeader = "**Cuento personalizado**:\n"
)

// personalizerPre writes the generation request for a generator and the
// edition request for the editor, which needs a review to work from.
func personalizerPre(kind role.Kind) agent.PreFunc {
	return func(_ context.Context, s state.Information) ([]llm.Message, error) {
		if kind != KindEditor {
			return []llm.Message{llm.User(personalizeRequest + render.Book(s.OriginalBook))}, nil
		}

		last, reviewed := s.LastEvaluation()
		if !reviewed {
			return nil, core.NewConfigError(string(kind), "edition requested before any review")
		}
		var sb strings.Builder
		sb.WriteString(editRequest)
		sb.WriteString("\n\n" + originalHeader)
		sb.WriteString(render.Book(s.OriginalBook))
		sb.WriteString("\n\n" + personalizedHeader)
		sb.WriteString(render.Book(s.ModifiedBook))
		sb.WriteString("\n\n**Ediciones solicitadas**:\n")
		sb.WriteString(last.Changes)
		return []llm.Message{llm.User(sb.String())}, nil
	}
}

// generatorPost adds the parsed story to the candidate pool.
func generatorPost(_ context.Context, _ state.Information, reply llm.Message) (state.Information, error) {
	book, err := parser.ParseBook(reply.Content)
	if err != nil {
		return state.Information{}, err
	}
	return state.Information{IntermediateBooks: []*domain.Book{book}}, nil
}

// editorPost publishes the edited story and counts the round.
func editorPost(_ context.Context, s state.Information, reply llm.Message) (state.Information, error) {
	book, err := parser.ParseBook(reply.Content)
	if err != nil {
		return state.Information{}, err
	}
	return state.Information{ModifiedBook: book, EditionRounds: s.EditionRounds + 1}, nil
}

// pairOf returns the two candidates a pairwise critic compares.
func pairOf(s state.Information) (*domain.Book, *domain.Book, error) {
	if len(s.IntermediateBooks) < 2 {
		return nil, nil, core.NewConfigError("pair_critic",
			"pairwise comparison needs two candidates, got %d", len(s.IntermediateBooks))
	}
	return s.IntermediateBooks[0], s.IntermediateBooks[1], nil
}

func pairCriticPre(_ context.Context, s state.Information) ([]llm.Message, error) {
	a, b, err := pairOf(s)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(pairRequest)
	sb.WriteString("\n\n" + originalHeader)
	sb.WriteString(render.Book(s.OriginalBook))
	sb.WriteString("\n\n**Cuento personalizado A**:\n")
	sb.WriteString(render.Book(a))
	sb.WriteString("\n\n**Cuento personalizado B**:\n")
	sb.WriteString(render.Book(b))
	return []llm.Message{llm.User(sb.String())}, nil
}

// pairCriticPost turns the verdict into a vote for the winning candidate's
// UID. An unreadable verdict is an empty vote, not an error.
func pairCriticPost(_ context.Context, s state.Information, reply llm.Message) (state.Information, error) {
	a, b, err := pairOf(s)
	if err != nil {
		return state.Information{}, err
	}

	criteria := domain.PairwiseCriteria
	eval := domain.Evaluation{Criteria: &criteria}
	switch JudgePair(reply.Content) {
	case "A":
		eval.Label = a.ID()
	case "B":
		eval.Label = b.ID()
	}
	return state.Information{Evaluations: []domain.Evaluation{eval}}, nil
}

// reviewRequest asks for a label on the current personalization.
func reviewRequest(query string, s state.Information) llm.Message {
	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString("\n\n" + originalHeader)
	sb.WriteString(render.Book(s.OriginalBook))
	sb.WriteString("\n\n" + personalizedHeader)
	sb.WriteString(render.Book(s.ModifiedBook))
	return llm.User(sb.String())
}

func labelPre(_ context.Context, s state.Information) ([]llm.Message, error) {
	return []llm.Message{reviewRequest(labelRequest, s)}, nil
}

// evaluationPost parses the critic's verdict and tags it with criteria.
func evaluationPost(criteria domain.Criteria) agent.PostFunc {
	return func(_ context.Context, _ state.Information, reply llm.Message) (state.Information, error) {
		eval, err := parser.ParseEvaluation(reply.Content)
		if err != nil {
			return state.Information{}, err
		}
		c := criteria
		eval.Criteria = &c
		return state.Information{Evaluations: []domain.Evaluation{eval}}, nil
	}
}

// aspectCriticPre asks for a label in deep-review mode and forwards the
// pending question in consultant mode.
func aspectCriticPre(roles *role.Collection) agent.PreFunc {
	return func(_ context.Context, s state.Information) ([]llm.Message, error) {
		active, err := roles.Active()
		if err != nil {
			return nil, err
		}
		query := labelRequest
		if active != nil && active.Kind == KindConsultant {
			query = s.Query
		}
		return []llm.Message{reviewRequest(query, s)}, nil
	}
}

// aspectCriticPost records an evaluation only for deep reviews; consultant
// answers are returned through the transcript.
func aspectCriticPost(roles *role.Collection, criteria domain.Criteria) agent.PostFunc {
	review := evaluationPost(criteria)
	return func(ctx context.Context, s state.Information, reply llm.Message) (state.Information, error) {
		active, err := roles.Active()
		if err != nil {
			return state.Information{}, err
		}
		if active == nil || active.Kind != KindDeepReview {
			return state.Information{}, nil
		}
		return review(ctx, s, reply)
	}
}
