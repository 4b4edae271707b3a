// Package extractor derives the publishable metadata of an article. The
// frontmatter extractor needs no network; a model-backed extractor can be
// placed ahead of it in a Chain.
package extractor

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/prettylog/blogpipe/internal/article"
)

const maxSummaryRunes = 160

// ErrNoMetadata is returned by an extractor that has nothing to contribute.
var ErrNoMetadata = errors.New("extractor: no metadata")

// Metadata is what gets stored alongside the post body.
type Metadata struct {
	Title      string
	Slug       string
	Summary    string
	Categories []string
	Tags       []string
}

type Extractor interface {
	Extract(ctx context.Context, a article.Article) (Metadata, error)
}

// Frontmatter uses what the author wrote in the file.
type Frontmatter struct{}

func (Frontmatter) Extract(_ context.Context, a article.Article) (Metadata, error) {
	summary := a.Summary
	if summary == "" {
		summary = firstParagraph(a.Body)
	}
	return Metadata{
		Title:      a.Title,
		Slug:       a.Slug,
		Summary:    truncate(summary, maxSummaryRunes),
		Categories: a.Categories,
		Tags:       a.Tags,
	}, nil
}

// Chain asks each extractor in turn and fills fields left empty by earlier
// ones. ErrNoMetadata from a link is skipped; any other error aborts.
type Chain []Extractor

func (c Chain) Extract(ctx context.Context, a article.Article) (Metadata, error) {
	var out Metadata
	found := false
	for _, e := range c {
		m, err := e.Extract(ctx, a)
		if errors.Is(err, ErrNoMetadata) {
			continue
		}
		if err != nil {
			return Metadata{}, err
		}
		found = true
		merge(&out, m)
	}
	if !found {
		return Metadata{}, ErrNoMetadata
	}
	return out, nil
}

func merge(dst *Metadata, src Metadata) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Slug == "" {
		dst.Slug = src.Slug
	}
	if dst.Summary == "" {
		dst.Summary = src.Summary
	}
	if len(dst.Categories) == 0 {
		dst.Categories = src.Categories
	}
	if len(dst.Tags) == 0 {
		dst.Tags = src.Tags
	}
}

func firstParagraph(body string) string {
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, "#") || strings.HasPrefix(block, "![") || strings.HasPrefix(block, "```") {
			continue
		}
		return strings.Join(strings.Fields(block), " ")
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
