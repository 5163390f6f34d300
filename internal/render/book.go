package render

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dotcommander/storyteller/internal/domain"
)

// BookRenderer converts books into the markdown dialect ParseBook reads.
type BookRenderer struct {
	IncludeImages    bool
	IncludeImageData bool // render Data as a base64 PNG data URL
	IgnoreTypes      []domain.ContentType
}

// Book renders with the default options (text only).
func Book(b *domain.Book) string {
	return BookRenderer{}.Render(b)
}

// Render returns the markdown for b. A nil book renders as an empty string
// and an untitled one under the default title.
func (r BookRenderer) Render(b *domain.Book) string {
	if b == nil {
		return ""
	}

	title := b.Title
	if title == "" {
		title = domain.DefaultTitle
	}
	out := []string{fmt.Sprintf("# %s\n", title)}

	if r.IncludeImages && b.Cover != nil {
		out = append(out, r.image(*b.Cover), "")
	}

	for _, page := range b.Pages {
		out = append(out, "---", r.page(page))
	}

	return strings.Join(out, "\n")
}

func (r BookRenderer) page(p domain.Page) string {
	var blocks []string

	for i, content := range p.Contents {
		if !slices.Contains(r.IgnoreTypes, content.Type) {
			blocks = append(blocks, r.content(content))
		}
		if r.IncludeImages && i < len(p.Images) {
			blocks = append(blocks, r.image(p.Images[i]))
		}
	}

	// images without a matching content block still belong to the page
	if r.IncludeImages {
		for i := len(p.Contents); i < len(p.Images); i++ {
			blocks = append(blocks, r.image(p.Images[i]))
		}
	}

	return strings.Join(blocks, "\n\n") + "\n"
}

func (r BookRenderer) content(c domain.Content) string {
	if c.Type == domain.ContentQuestion {
		return "Pregunta: " + c.Text
	}
	return c.Text
}

func (r BookRenderer) image(img domain.Image) string {
	if r.IncludeImageData {
		return fmt.Sprintf("![%s]:(data:image/png;base64,%s)", img.Caption, img.Data)
	}
	return fmt.Sprintf("![%s]:(%s)", img.Caption, img.Data)
}
