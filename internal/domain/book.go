package domain

import (
	"github.com/google/uuid"
)

// DefaultTitle is used when a parsed book carries no title header.
const DefaultTitle = "Untitled"

// InvalidImageCaption marks an image line that could not be parsed.
const InvalidImageCaption = "Invalid Image Format"

// ContentType is the semantic type of a text block
type ContentType string

const (
	ContentNarrative ContentType = "narrative"
	ContentQuestion  ContentType = "question"
)

// Content is a discrete block of text on a page
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text"`
}

// Image is an image resource, usually a URL or base64 payload.
type Image struct {
	Data    string `json:"data"`
	Caption string `json:"caption"`
}

// InvalidImage returns the placeholder substituted for malformed image tags.
func InvalidImage() Image {
	return Image{Data: "", Caption: InvalidImageCaption}
}

// Page holds ordered contents and images. Images pair with contents by index.
type Page struct {
	Contents []Content `json:"contents"`
	Images   []Image   `json:"images"`
}

// Book is the root aggregate of a story. Personalization produces new books
// rather than editing an existing one.
type Book struct {
	UID   uuid.UUID `json:"uid"`
	Title string    `json:"title"`
	Cover *Image    `json:"cover,omitempty"`
	Pages []Page    `json:"pages"`
}

// NewBook creates an empty book with a fresh UID.
func NewBook(title string) *Book {
	if title == "" {
		title = DefaultTitle
	}
	return &Book{
		UID:   uuid.New(),
		Title: title,
	}
}

// Clone returns a deep copy that keeps the UID.
func (b *Book) Clone() *Book {
	if b == nil {
		return nil
	}

	out := &Book{
		UID:   b.UID,
		Title: b.Title,
		Pages: make([]Page, len(b.Pages)),
	}
	if b.Cover != nil {
		cover := *b.Cover
		out.Cover = &cover
	}
	for i, p := range b.Pages {
		out.Pages[i] = p.Clone()
	}
	return out
}

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	return Page{
		Contents: append([]Content(nil), p.Contents...),
		Images:   append([]Image(nil), p.Images...),
	}
}

// ID returns the UID in the string form used as an evaluation label.
func (b *Book) ID() string {
	if b == nil {
		return ""
	}
	return b.UID.String()
}

// FindBook returns the book whose UID string equals id.
func FindBook(books []*Book, id string) *Book {
	for _, b := range books {
		if b != nil && b.ID() == id {
			return b
		}
	}
	return nil
}
