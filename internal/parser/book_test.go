package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/storyteller/internal/core"
	"github.com/dotcommander/storyteller/internal/domain"
	"github.com/dotcommander/storyteller/internal/parser"
	"github.com/dotcommander/storyteller/internal/render"
)

const story = `# El zorro y las uvas
![Portada del cuento]:(https://example.com/cover.png)

---
Un zorro hambriento vio unas uvas.
![El zorro mira las uvas]:(https://example.com/1.png)
PREGUNTA: ¿Qué vio el zorro?

---
El zorro saltó y saltó.
**Pregunta:** ¿Alcanzó las uvas?
![roto](sin-formato)
`

func TestParseBook(t *testing.T) {
	book, err := parser.ParseBook(story)
	require.NoError(t, err)

	assert.Equal(t, "El zorro y las uvas", book.Title)
	require.NotNil(t, book.Cover)
	assert.Equal(t, domain.Image{Data: "https://example.com/cover.png", Caption: "Portada del cuento"}, *book.Cover)
	require.Len(t, book.Pages, 2)

	first := book.Pages[0]
	assert.Equal(t, []domain.Content{
		{Type: domain.ContentNarrative, Text: "Un zorro hambriento vio unas uvas."},
		{Type: domain.ContentQuestion, Text: "¿Qué vio el zorro?"},
	}, first.Contents)
	assert.Equal(t, []domain.Image{{Data: "https://example.com/1.png", Caption: "El zorro mira las uvas"}}, first.Images)

	second := book.Pages[1]
	assert.Equal(t, domain.ContentQuestion, second.Contents[1].Type)
	assert.Equal(t, "¿Alcanzó las uvas?", second.Contents[1].Text)
	assert.Equal(t, []domain.Image{domain.InvalidImage()}, second.Images)
}

func TestParseBookHeaderIsOptional(t *testing.T) {
	book, err := parser.ParseBook("---\nSolo texto\n---\n")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultTitle, book.Title)
	assert.Nil(t, book.Cover)
	require.Len(t, book.Pages, 2)
	assert.Empty(t, book.Pages[1].Contents)
}

func TestParseBookErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"no separator", "# Título\nHabía una vez"},
		{"text before first page", "Había una vez\n---\ntexto"},
		{"two titles", "# Uno\n# Dos\n---\ntexto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseBook(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrParse)
		})
	}
}

func TestBookRoundTrip(t *testing.T) {
	orig := domain.NewBook("Caperucita")
	orig.Cover = &domain.Image{Data: "cover.png", Caption: "Caperucita en el bosque"}
	orig.Pages = []domain.Page{
		{
			Contents: []domain.Content{
				{Type: domain.ContentNarrative, Text: "Caperucita caminaba por el bosque."},
				{Type: domain.ContentQuestion, Text: "¿A quién visitaba Caperucita?"},
			},
			Images: []domain.Image{
				{Data: "p1.png", Caption: "el bosque"},
				{Data: "p1b.png", Caption: "la abuela"},
				{Data: "p1c.png", Caption: "la cesta"},
			},
		},
		{
			Contents: []domain.Content{{Type: domain.ContentNarrative, Text: "El lobo esperaba."}},
		},
	}

	text := render.BookRenderer{IncludeImages: true}.Render(orig)
	parsed, err := parser.ParseBook(text)
	require.NoError(t, err)

	assert.Equal(t, orig.Title, parsed.Title)
	assert.Equal(t, orig.Cover, parsed.Cover)
	require.Len(t, parsed.Pages, len(orig.Pages))
	for i := range orig.Pages {
		assert.Equal(t, orig.Pages[i].Contents, parsed.Pages[i].Contents, "page %d contents", i)
		assert.Equal(t, orig.Pages[i].Images, parsed.Pages[i].Images, "page %d images", i)
	}
}

func TestUntitledBookRoundTrip(t *testing.T) {
	orig := &domain.Book{Pages: []domain.Page{{
		Contents: []domain.Content{{Type: domain.ContentNarrative, Text: "Había una vez."}},
	}}}

	parsed, err := parser.ParseBook(render.Book(orig))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTitle, parsed.Title)
	require.Len(t, parsed.Pages, 1)
	assert.Equal(t, orig.Pages[0].Contents, parsed.Pages[0].Contents)
}
