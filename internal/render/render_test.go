package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dotcommander/storyteller/internal/domain"
)

func TestBookRenderer(t *testing.T) {
	book := domain.NewBook("Los tres cerditos")
	book.Cover = &domain.Image{Data: "aGVsbG8=", Caption: "portada"}
	book.Pages = []domain.Page{{
		Contents: []domain.Content{
			{Type: domain.ContentNarrative, Text: "Había tres cerditos."},
			{Type: domain.ContentQuestion, Text: "¿Cuántos cerditos había?"},
		},
		Images: []domain.Image{{Data: "aGVsbG8=", Caption: "cerditos"}},
	}}

	tests := []struct {
		name     string
		renderer BookRenderer
		want     string
	}{
		{
			name:     "text only",
			renderer: BookRenderer{},
			want:     "# Los tres cerditos\n\n---\nHabía tres cerditos.\n\nPregunta: ¿Cuántos cerditos había?\n",
		},
		{
			name:     "ignore questions",
			renderer: BookRenderer{IgnoreTypes: []domain.ContentType{domain.ContentQuestion}},
			want:     "# Los tres cerditos\n\n---\nHabía tres cerditos.\n",
		},
		{
			name:     "images as data urls",
			renderer: BookRenderer{IncludeImages: true, IncludeImageData: true},
			want: "# Los tres cerditos\n\n![portada]:(data:image/png;base64,aGVsbG8=)\n\n---\n" +
				"Había tres cerditos.\n\n![cerditos]:(data:image/png;base64,aGVsbG8=)\n\nPregunta: ¿Cuántos cerditos había?\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.renderer.Render(book))
		})
	}

	assert.Empty(t, Book(nil))
	assert.Equal(t, "# "+domain.DefaultTitle+"\n", Book(&domain.Book{}))
}

func TestEvaluationRenderer(t *testing.T) {
	eval := domain.Evaluation{
		Label:     "aceptable",
		Reasoning: "Buena integración.",
		Criteria:  &domain.CoherenceCriteria,
	}

	out := Evaluation(eval)
	assert.Contains(t, out, "**Criterio**: coherence\n\n")
	assert.Contains(t, out, "- Etiqueta: aceptable\n")
	assert.Contains(t, out, "- Razonamiento: Buena integración.\n")
	assert.NotContains(t, out, "Cambios recomendados")

	// evaluations without criteria still render
	assert.Contains(t, Evaluation(domain.Evaluation{Label: "x"}), "- Etiqueta: x")
}

func TestCriteriaRenderer(t *testing.T) {
	c := domain.Criteria{Type: "style", Description: "voz", Indicators: []string{"uno", "dos"}, Importance: domain.ImportanceMedium}

	assert.Equal(t, "**Criteria**: style -> voz (importance: medium)\n   - uno\n   - dos\n", Criteria(c, true))
	assert.Equal(t, "**Criteria**: style -> voz (importance: medium)\n", Criteria(c, false))
	assert.Contains(t, Criteria(domain.WhCriteria, false), "(importance: unset)")
	assert.Equal(t, "- uno\n- dos\n", Indicators(c))
}

func TestPreferencesRenderer(t *testing.T) {
	out := Preferences([]domain.Preference{
		{Type: "Animal", Value: "Gato"},
		{Type: "Animal", Value: "Conejo"},
		{Type: "Color", Value: "Azul"},
	})
	assert.Equal(t, "\n- **Animal**: Gato, Conejo\n- **Color**: Azul\n\n", out)
}
