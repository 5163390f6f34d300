package questions

import (
	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/render"
	"github.com/dotcommander/storyteller/internal/role"
)

const (
	PromptQuestioner = "questioner"
	PromptAggregator = "questions_aggregator"
	PromptSupervisor = "questions_supervisor"

	KindQuestioner role.Kind = "questioner"
	KindAggregator role.Kind = "questions_aggregator"
	KindSupervisor role.Kind = "questions_supervisor"
)

// Prompts lists the instruction prompts an organization built from cfg
// reads.
func Prompts(cfg config.QuestionsConfig) []string {
	names := []string{PromptQuestioner, PromptAggregator}
	if cfg.Supervised {
		names = append(names, PromptSupervisor)
	}
	return names
}

// Questioner kinds accepted in the configuration.
const (
	Completion = "completion"
	Recall     = "recall"
	OpenEnded  = "open_ended"
	Wh         = "wh"
	Distancing = "distancing"
)

// questioners pairs each kind with its criterion, in CROWD order.
var questioners = []struct {
	kind     string
	criteria domain.Criteria
}{
	{Completion, domain.CompletionCriteria},
	{Recall, domain.RecallCriteria},
	{OpenEnded, domain.OpenEndedCriteria},
	{Wh, domain.WhCriteria},
	{Distancing, domain.DistancingCriteria},
}

// Kinds lists every questioner kind.
func Kinds() []string {
	out := make([]string, len(questioners))
	for i, q := range questioners {
		out[i] = q.kind
	}
	return out
}

// CriteriaFor returns the criterion a questioner kind works with.
func CriteriaFor(kind string) (domain.Criteria, bool) {
	for _, q := range questioners {
		if q.kind == kind {
			return q.criteria, true
		}
	}
	return domain.Criteria{}, false
}

func allCriteria() []domain.Criteria {
	out := make([]domain.Criteria, len(questioners))
	for i, q := range questioners {
		out[i] = q.criteria
	}
	return out
}

// QuestionerRoles configures the shared questioner prompt for one criterion.
func QuestionerRoles(reg role.Registry, c domain.Criteria) (*role.Collection, error) {
	r, err := role.New(reg, KindQuestioner, PromptQuestioner,
		role.WithPermissions(role.LastMessage{}),
		role.WithVariables(map[string]string{
			"criteria":    c.Type,
			"description": c.Description,
			"tips":        render.Indicators(c),
		}))
	if err != nil {
		return nil, err
	}
	return role.NewCollection(role.ModeAll, r), nil
}

func AggregatorRoles(reg role.Registry) (*role.Collection, error) {
	r, err := role.New(reg, KindAggregator, PromptAggregator,
		role.WithPermissions(role.LastMessage{}),
		role.WithVariables(map[string]string{
			"description": render.CriteriaList(allCriteria(), true),
		}))
	if err != nil {
		return nil, err
	}
	return role.NewCollection(role.ModeAll, r), nil
}

// SupervisorRoles lets the supervisor hand work to each named questioner.
func SupervisorRoles(reg role.Registry, agents ...string) (*role.Collection, error) {
	r, err := role.New(reg, KindSupervisor, PromptSupervisor,
		role.WithProtocols(agents...))
	if err != nil {
		return nil, err
	}
	return role.NewCollection(role.ModeAll, r), nil
}
