package personalization

import (
	"math"
	"math/rand/v2"
	"regexp"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/graph"
	"github.com/dotcommander/storyteller/internal/state"
)

// Evaluation modes.
const (
	ModeProduct     = "product"
	ModePermutation = "permutation"
	ModeCombination = "combination"
	ModeRandom      = "random"
)

const (
	minTemperature = 0.0
	maxTemperature = 2.0
)

// Pair is one pairwise match: A and B as the critic will see them.
type Pair struct {
	A, B *domain.Book
}

// NormalizeMode resolves plural aliases and rejects unknown modes.
func NormalizeMode(mode string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	if !config.IsEvaluationMode(m) {
		return "", core.NewConfigError("evaluation_mode", "unknown evaluation mode %q", mode)
	}
	return strings.TrimSuffix(m, "s"), nil
}

// EvaluationCount is the number of pairwise critics a mode needs for n
// candidates. Random mode uses numEvaluations as given.
func EvaluationCount(mode string, n, numEvaluations int) (int, error) {
	mode, err := NormalizeMode(mode)
	if err != nil {
		return 0, err
	}

	switch mode {
	case ModeProduct:
		return n * n, nil
	case ModePermutation:
		return n * (n - 1), nil
	case ModeCombination:
		return n * (n - 1) / 2, nil
	default:
		if numEvaluations > n*(n-1) {
			return 0, core.NewConfigError("num_evaluations",
				"%d random evaluations requested but only %d distinct ordered pairs exist", numEvaluations, n*(n-1))
		}
		return numEvaluations, nil
	}
}

// SelectPairs lists the matches of a tournament. Exhaustive modes follow
// the input order; random mode draws distinct ordered pairs without
// self-matches.
func SelectPairs(books []*domain.Book, mode string, numEvaluations int, rng *rand.Rand) ([]Pair, error) {
	mode, err := NormalizeMode(mode)
	if err != nil {
		return nil, err
	}

	var pairs []Pair
	switch mode {
	case ModeProduct:
		for _, a := range books {
			for _, b := range books {
				pairs = append(pairs, Pair{a, b})
			}
		}

	case ModePermutation, ModeRandom:
		for i, a := range books {
			for j, b := range books {
				if i != j {
					pairs = append(pairs, Pair{a, b})
				}
			}
		}
		if mode == ModeRandom {
			if numEvaluations > len(pairs) {
				return nil, core.NewConfigError("num_evaluations",
					"%d random evaluations requested but only %d distinct ordered pairs exist", numEvaluations, len(pairs))
			}
			rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
			pairs = pairs[:numEvaluations]
		}

	case ModeCombination:
		for i := range books {
			for j := i + 1; j < len(books); j++ {
				pairs = append(pairs, Pair{books[i], books[j]})
			}
		}
	}

	return pairs, nil
}

// SampleTemperatures spreads n generation temperatures evenly over
// [lo, hi] and jitters each with a normal draw whose spread shrinks as n
// grows. Results stay within [0, 2].
func SampleTemperatures(n int, lo, hi float64, src rand.Source) []float64 {
	if n <= 0 {
		return nil
	}

	points := []float64{lo}
	if n > 1 {
		points = floats.Span(make([]float64, n), lo, hi)
	}

	sigma := 1 / math.Pow(2, float64(n-1))
	out := make([]float64, n)
	for i, p := range points {
		d := distuv.Normal{Mu: p, Sigma: sigma, Src: src}
		out[i] = min(max(d.Rand(), minTemperature), maxTemperature)
	}
	return out
}

var (
	verdictLine = regexp.MustCompile(`^\s*(?i:respuesta|etiqueta|mejor|ganador|veredicto|elecci[oó]n)[^:]*:\s*([AB])\b`)
	tokenTrim   = ".,;:!?()[]\"'`"
)

// JudgePair extracts the pairwise verdict: "A", "B", or "" when the reply
// names neither. A verdict header line wins over a stray token earlier in
// the text.
func JudgePair(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "*", ""), "\n")

	for _, line := range lines {
		if m := verdictLine.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}

	for _, line := range lines {
		for _, word := range strings.Fields(line) {
			switch strings.Trim(word, tokenTrim) {
			case "A":
				return "A"
			case "B":
				return "B"
			}
		}
	}
	return ""
}

// PluralityWinner returns the label with most votes. Ties go to the label
// seen first; empty labels do not vote.
func PluralityWinner(evals []domain.Evaluation) (string, bool) {
	counts := make(map[string]int)
	var order []string

	for _, e := range evals {
		if e.Label == "" {
			continue
		}
		if counts[e.Label] == 0 {
			order = append(order, e.Label)
		}
		counts[e.Label]++
	}

	winner, best := "", 0
	for _, label := range order {
		if counts[label] > best {
			winner, best = label, counts[label]
		}
	}
	return winner, best > 0
}

// RouteEdition decides what follows a critic review: the editor when
// changes were requested and rounds remain, the end otherwise.
func RouteEdition(s state.Information, maxRounds int) string {
	last, ok := s.LastEvaluation()
	switch {
	case !ok:
		return graph.End
	case last.NoChangesRequested():
		return graph.End
	case s.EditionRounds >= maxRounds:
		return graph.End
	default:
		return NodeEditor
	}
}
