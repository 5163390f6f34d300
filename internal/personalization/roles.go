package personalization

import (
	"fmt"
	"strings"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/render"
	"github.com/dotcommander/storyteller/internal/role"
)

// Role kinds used to switch exactly-one collections.
const (
	KindPersonalizer role.Kind = "personalizer"
	KindEditor       role.Kind = "personalizer_editor"
	KindPairCritic   role.Kind = "pair_critic"
	KindEdition      role.Kind = "edition_critic"
	KindTriage       role.Kind = "triage_critic"
	KindDeepReview   role.Kind = "deep_review_critic"
	KindConsultant   role.Kind = "consultant_critic"
)

// Registry names of the instruction prompts.
const (
	PromptPersonalizer = "personalizer"
	PromptEditor       = "personalizer_editor"
	PromptPairCritic   = "personalization_pair_critic"
	PromptEdition      = "personalization_edition_critic"
	PromptTriage       = "personalization_triage_critic"
	PromptDeepReview   = "personalization_deep_review_critic"
	PromptConsultant   = "personalization_consultant_critic"
)

// Prompts lists the instruction prompts an organization built from cfg
// reads.
func Prompts(cfg config.PersonalizationConfig) []string {
	names := []string{PromptPersonalizer, PromptEditor, PromptPairCritic}
	if cfg.Critic == CriticTriage {
		return append(names, PromptTriage, PromptDeepReview, PromptConsultant)
	}
	return append(names, PromptEdition)
}

// pairCriteria is the order the pairwise critic presents the criteria in.
var pairCriteria = []domain.Criteria{
	domain.CoherenceCriteria,
	domain.NaturalnessCriteria,
	domain.StyleCriteria,
	domain.MoralCriteria,
	domain.ValueCriteria,
	domain.EmotionCriteria,
	domain.LinguisticCriteria,
	domain.VerisimilitudeCriteria,
}

const triageAspects = `- la coherencia
- la naturalidad
- el estilo
- la enseñanza
- el valor narrativo añadido
- el impacto emocional
`

// PersonalizerRoles builds the exactly-one pair used by generators and the
// editor. The personalizer role starts active.
func PersonalizerRoles(reg role.Registry) (*role.Collection, error) {
	writer, err := role.New(reg, KindPersonalizer, PromptPersonalizer,
		role.WithPermissions(role.LastMessage{}))
	if err != nil {
		return nil, err
	}
	editor, err := role.New(reg, KindEditor, PromptEditor,
		role.WithPermissions(role.LastMessage{}))
	if err != nil {
		return nil, err
	}
	return role.NewCollection(role.ModeExactlyOne, writer, editor), nil
}

func PairCriticRoles(reg role.Registry) (*role.Collection, error) {
	r, err := role.New(reg, KindPairCritic, PromptPairCritic,
		role.WithPermissions(role.LastMessage{}),
		role.WithVariables(map[string]string{
			"criteria": render.CriteriaList(pairCriteria, false),
		}))
	if err != nil {
		return nil, err
	}
	return role.NewCollection(role.ModeAll, r), nil
}

func EditionCriticRoles(reg role.Registry) (*role.Collection, error) {
	r, err := role.New(reg, KindEdition, PromptEdition,
		role.WithPermissions(role.LastMessage{}),
		role.WithVariables(map[string]string{
			"criteria": render.CriteriaList(domain.ReviewCriteria(), false),
		}))
	if err != nil {
		return nil, err
	}
	return role.NewCollection(role.ModeAll, r), nil
}

// TriageCriticRoles gives the triage critic the aspect list and the
// description of the tools it can call.
func TriageCriticRoles(reg role.Registry, tools ...role.Activity) (*role.Collection, error) {
	r, err := role.New(reg, KindTriage, PromptTriage,
		role.WithPermissions(role.LastMessage{}),
		role.WithActivities(tools...),
		role.WithVariables(map[string]string{
			"criteria":      triageAspects,
			"critics_tools": describeTools(tools),
		}))
	if err != nil {
		return nil, err
	}
	return role.NewCollection(role.ModeAll, r), nil
}

// AspectCriticRoles builds the deep-review and consultant roles of one
// aspect critic. Deep review starts active.
func AspectCriticRoles(reg role.Registry, c domain.Criteria) (*role.Collection, error) {
	vars := map[string]string{
		"criteria":    c.Type,
		"description": c.Description,
		"indicators":  render.Indicators(c),
	}
	deep, err := role.New(reg, KindDeepReview, PromptDeepReview,
		role.WithPermissions(role.LastMessage{}),
		role.WithVariables(vars))
	if err != nil {
		return nil, err
	}
	consultant, err := role.New(reg, KindConsultant, PromptConsultant,
		role.WithPermissions(role.LastMessage{}),
		role.WithVariables(vars))
	if err != nil {
		return nil, err
	}
	return role.NewCollection(role.ModeExactlyOne, deep, consultant), nil
}

func describeTools(tools []role.Activity) string {
	var sb strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&sb, "%s: %s\n", t.Name(), t.Description())
	}
	return sb.String()
}
