package personalization

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dotcommander/storyteller/internal/agent"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/graph"
	"github.com/dotcommander/storyteller/internal/render"
	"github.com/dotcommander/storyteller/internal/state"
)

const (
	ToolDeepReport = "request_deep_report_from_critics"
	ToolAskCritic  = "ask_critic"

	reportHeader = "# Reporte de evaluación de críticos:\n"
)

// Aspect is one dimension a specialist critic reviews on request.
type Aspect struct {
	Name     string
	Agent    string
	Criteria domain.Criteria
}

var aspects = []Aspect{
	{"coherence", "coherence_critic", domain.CoherenceCriteria},
	{"naturalness", "naturalness_critic", domain.NaturalnessCriteria},
	{"style", "style_critic", domain.StyleCriteria},
	{"the moral", "moral_critic", domain.MoralCriteria},
	{"added narrative value", "value_critic", domain.ValueCriteria},
	{"emotional impact", "emotion_critic", domain.EmotionCriteria},
}

// Aspects lists the names the triage tools accept.
func Aspects() []string {
	names := make([]string, len(aspects))
	for i, a := range aspects {
		names[i] = a.Name
	}
	return names
}

func findAspect(name string) (Aspect, bool) {
	for _, a := range aspects {
		if a.Name == strings.ToLower(strings.TrimSpace(name)) {
			return a, true
		}
	}
	return Aspect{}, false
}

// aspectCritic builds a fresh specialist for one request. Specialists are
// never shared between calls.
func (o *Organization) aspectCritic(asp Aspect, prefs []domain.Preference) (*agent.Agent, error) {
	roles, err := AspectCriticRoles(o.prompts, asp.Criteria)
	if err != nil {
		return nil, err
	}
	roles.SetVariables(map[string]string{"preferences": render.Preferences(prefs)})
	return o.newAgent(asp.Agent, roles, o.cfg.Model(asp.Agent),
		agent.WithPre(aspectCriticPre(roles)),
		agent.WithPost(aspectCriticPost(roles, asp.Criteria)))
}

// DeepReport runs one deep-review critic per requested aspect in parallel
// and renders their evaluations. Unknown aspects are ignored.
func (o *Organization) DeepReport(ctx context.Context, requested []string, s state.Information) (string, error) {
	g := graph.New[state.Information]()
	var added []string

	for _, name := range requested {
		asp, ok := findAspect(name)
		if !ok {
			o.logger.Warn("unknown aspect ignored", "aspect", name)
			continue
		}
		if slices.Contains(added, asp.Agent) {
			continue
		}
		critic, err := o.aspectCritic(asp, s.Preferences)
		if err != nil {
			return "", err
		}
		if err := critic.Roles.Activate(KindDeepReview); err != nil {
			return "", err
		}
		g.AddNode(asp.Agent, critic.Node()).AddEdge(graph.Start, asp.Agent)
		added = append(added, asp.Agent)
	}

	if len(added) == 0 {
		return fmt.Sprintf("No se solicitó ningún aspecto válido. Aspectos disponibles: %s.",
			strings.Join(Aspects(), ", ")), nil
	}

	report, err := g.Compile(
		graph.WithName("critics_report"),
		graph.WithConcurrency(o.limits.MaxConcurrency),
		graph.WithLogger(o.logger),
	)
	if err != nil {
		return "", err
	}

	out, err := report.Invoke(ctx, state.Information{
		Preferences:  slices.Clone(s.Preferences),
		OriginalBook: s.OriginalBook.Clone(),
		ModifiedBook: s.ModifiedBook.Clone(),
	})
	if err != nil {
		return "", err
	}
	return RenderReport(out.Evaluations), nil
}

// RenderReport formats specialist evaluations for the triage critic.
func RenderReport(evals []domain.Evaluation) string {
	var sb strings.Builder
	sb.WriteString(reportHeader)
	for _, e := range evals {
		sb.WriteString("---\n")
		sb.WriteString(render.Evaluation(e))
		sb.WriteString("\n")
	}
	return sb.String()
}

// AskCritic puts one question to the specialist of aspect and returns its
// answer. The caller's state is not modified.
func (o *Organization) AskCritic(ctx context.Context, question, aspect string, s state.Information) (string, error) {
	asp, ok := findAspect(aspect)
	if !ok {
		return "", fmt.Errorf("unknown aspect %q, expected one of: %s", aspect, strings.Join(Aspects(), ", "))
	}

	critic, err := o.aspectCritic(asp, s.Preferences)
	if err != nil {
		return "", err
	}
	if err := critic.Roles.Activate(KindConsultant); err != nil {
		return "", err
	}

	out, err := critic.Invoke(ctx, consultation(question, s))
	if err != nil {
		return "", err
	}
	last, _ := out.LastMessage()
	return last.Content, nil
}

// consultation is the consultant's input: a deep copy of s carrying the
// question.
func consultation(question string, s state.Information) state.Information {
	in := s.Clone()
	in.OriginalBook = s.OriginalBook.Clone()
	in.ModifiedBook = s.ModifiedBook.Clone()
	in.Query = question
	return in
}

func aspectEnum() map[string]any {
	return map[string]any{"type": "string", "enum": Aspects()}
}

func (o *Organization) deepReportTool() agent.FuncTool {
	return agent.FuncTool{
		ToolName:        ToolDeepReport,
		ToolDescription: "Requests an in-depth report from the critics on the specified aspects of a story personalization. Returns the critics' comments on the evaluated aspects.",
		Schema: agent.ObjectSchema(map[string]any{
			"aspects_to_evaluate": map[string]any{
				"type":        "array",
				"items":       aspectEnum(),
				"description": "Aspects to evaluate.",
			},
		}, "aspects_to_evaluate"),
		Fn: func(ctx context.Context, args json.RawMessage, s state.Information) (string, error) {
			var in struct {
				Aspects []string `json:"aspects_to_evaluate"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("decoding arguments: %w", err)
			}
			return o.DeepReport(ctx, in.Aspects, s)
		},
	}
}

func (o *Organization) askCriticTool() agent.FuncTool {
	return agent.FuncTool{
		ToolName:        ToolAskCritic,
		ToolDescription: "Asks a specific critic a question about one aspect of a story personalization. Returns the critic's response.",
		Schema: agent.ObjectSchema(map[string]any{
			"question": map[string]any{"type": "string", "description": "The question to ask the critic."},
			"aspect":   aspectEnum(),
		}, "question", "aspect"),
		Fn: func(ctx context.Context, args json.RawMessage, s state.Information) (string, error) {
			var in struct {
				Question string `json:"question"`
				Aspect   string `json:"aspect"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("decoding arguments: %w", err)
			}
			return o.AskCritic(ctx, in.Question, in.Aspect, s)
		},
	}
}
