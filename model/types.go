package model

import (
	"fmt"
	"strings"
)

// ID is the caller supplied document identifier.
// Identifiers are stored exactly as supplied; they are never regenerated or remapped.
type ID uint64

// Tags carries arbitrary document metadata. It is passed through to
// collaborators untouched.
type Tags map[string]any

// Content is either raw text or a pre-tokenized sequence.
// The zero value is empty text.
type Content struct {
	text      string
	tokens    []string
	tokenized bool
}

// Text returns text content. Text is tokenized by the vector source.
func Text(s string) Content {
	return Content{text: s}
}

// Tokens returns pre-tokenized content. Tokens are used as-is.
func Tokens(tokens ...string) Content {
	return Content{tokens: tokens, tokenized: true}
}

// IsTokens reports whether c holds a token sequence.
func (c Content) IsTokens() bool { return c.tokenized }

// Text returns the raw text. For token content it returns the tokens joined by a space.
func (c Content) Text() string {
	if c.tokenized {
		return strings.Join(c.tokens, " ")
	}
	return c.text
}

// TokenSlice returns the token sequence, or nil for text content.
func (c Content) TokenSlice() []string {
	if !c.tokenized {
		return nil
	}
	return c.tokens
}

// String implements fmt.Stringer.
func (c Content) String() string {
	if c.tokenized {
		return fmt.Sprintf("Tokens(%q)", c.tokens)
	}
	return fmt.Sprintf("Text(%q)", c.text)
}

// Document is the unit handed to vector sources and scoring models.
type Document struct {
	// ID is nil only for transient queries.
	ID      *ID
	Content Content
	Tags    Tags
}

// NewDocument returns an identified document.
func NewDocument(id ID, content Content, tags Tags) Document {
	return Document{ID: &id, Content: content, Tags: tags}
}

// Query returns an anonymous document suitable for transform and search.
func Query(content Content) Document {
	return Document{Content: content}
}

// HasID reports whether the document carries an identifier.
func (d Document) HasID() bool { return d.ID != nil }

// Result is a single search hit.
type Result struct {
	ID    ID
	Score float32
}

// String returns a string representation of the Result.
func (r Result) String() string {
	return fmt.Sprintf("Result(%d:%.4f)", r.ID, r.Score)
}
