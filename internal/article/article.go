// Package article turns a markdown file with optional YAML frontmatter into
// the fields the publishing pipeline stores.
package article

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v2"
)

var delimiter = []byte("---")

// Article is a parsed markdown document.
type Article struct {
	Path       string
	Checksum   string
	Title      string
	Slug       string
	Summary    string
	Categories []string
	Tags       []string
	Draft      bool
	Date       time.Time
	Body       string
	Images     []ImageRef
}

type frontmatter struct {
	Title      string     `yaml:"title"`
	Slug       string     `yaml:"slug"`
	Summary    string     `yaml:"summary"`
	Desc       string     `yaml:"description"`
	Categories stringList `yaml:"categories"`
	Category   stringList `yaml:"category"`
	Tags       stringList `yaml:"tags"`
	Draft      bool       `yaml:"draft"`
	Date       string     `yaml:"date"`
}

// stringList accepts either a YAML sequence or a comma separated scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var many []string
	if err := unmarshal(&many); err == nil {
		*l = clean(many)
		return nil
	}
	var one string
	if err := unmarshal(&one); err != nil {
		return err
	}
	*l = clean(strings.Split(one, ","))
	return nil
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

// Parse reads raw as a markdown article located at path.
func Parse(path string, raw []byte) (Article, error) {
	sum := sha256.Sum256(raw)
	a := Article{
		Path:     path,
		Checksum: hex.EncodeToString(sum[:]),
	}

	meta, body, err := split(raw)
	if err != nil {
		return Article{}, fmt.Errorf("article %s: %w", path, err)
	}

	var fm frontmatter
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return Article{}, fmt.Errorf("article %s: frontmatter: %w", path, err)
		}
	}

	a.Body = strings.TrimLeft(string(body), "\r\n")
	a.Title = strings.TrimSpace(fm.Title)
	if a.Title == "" {
		a.Title = firstHeading(a.Body)
	}
	if a.Title == "" {
		a.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	a.Slug = Slugify(fm.Slug)
	if a.Slug == "" {
		a.Slug = Slugify(a.Title)
	}
	a.Summary = strings.TrimSpace(fm.Summary)
	if a.Summary == "" {
		a.Summary = strings.TrimSpace(fm.Desc)
	}
	a.Categories = categoryPath(fm.Categories, fm.Category)
	a.Tags = fm.Tags
	a.Draft = fm.Draft
	if fm.Date != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, fm.Date); err == nil {
				a.Date = t
				break
			}
		}
		if a.Date.IsZero() {
			return Article{}, fmt.Errorf("article %s: unrecognised date %q", path, fm.Date)
		}
	}
	a.Images = ImageRefs(a.Body)
	return a, nil
}

// split separates a leading --- delimited frontmatter block from the body.
func split(raw []byte) (meta, body []byte, err error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(raw, delimiter) {
		return nil, raw, nil
	}
	rest := raw[len(delimiter):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		// "---" not on its own line, treat as plain markdown
		return nil, raw, nil
	}
	rest = rest[nl+1:]
	for off := 0; off < len(rest); {
		end := bytes.IndexByte(rest[off:], '\n')
		var line []byte
		if end < 0 {
			line = rest[off:]
			end = len(rest) - off
		} else {
			line = rest[off : off+end]
		}
		if bytes.Equal(bytes.TrimSpace(line), delimiter) {
			next := off + end + 1
			if next > len(rest) {
				next = len(rest)
			}
			return rest[:off], rest[next:], nil
		}
		off += end + 1
	}
	return nil, nil, fmt.Errorf("unterminated frontmatter")
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// categoryPath returns the category hierarchy from root to leaf. A single
// entry may spell out the hierarchy with "/" or ">".
func categoryPath(lists ...stringList) []string {
	for _, l := range lists {
		if len(l) == 0 {
			continue
		}
		if len(l) == 1 {
			parts := strings.FieldsFunc(l[0], func(r rune) bool { return r == '/' || r == '>' })
			return clean(parts)
		}
		return l
	}
	return nil
}

// Slugify lowercases s and joins runs of letters and digits with dashes.
// Non-ASCII letters are kept.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
