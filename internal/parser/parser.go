// Package parser extracts frontmatter, titles, tags and note references from Markdown content.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
)

const fence = "---"

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Document is the parsed view of a note used by the link index.
type Document struct {
	Meta  map[string]any
	Body  string
	Title string
	Tags  []string
	Links models.Links
}

// Parse splits off YAML frontmatter and derives title, tags and references
// from the rest. Malformed frontmatter is kept as part of the body.
func Parse(data []byte) *Document {
	meta, body := frontmatter(string(data))
	return &Document{
		Meta:  meta,
		Body:  body,
		Title: title(meta, body),
		Tags:  tags(meta, body),
		Links: ExtractLinks(body),
	}
}

// frontmatter returns the decoded YAML block opening the text, if any, and
// the remaining body.
func frontmatter(text string) (map[string]any, string) {
	rest := strings.TrimLeft(text, "\r\n")
	if !strings.HasPrefix(rest, fence) {
		return nil, text
	}
	rest = rest[len(fence):]
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return nil, text
	}
	block := rest[:end]
	body := rest[end+1+len(fence):]

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, text
	}
	return meta, strings.TrimLeft(body, "\r\n")
}

// tags merges frontmatter tags (list or comma separated string) with inline
// #tags, first occurrence wins.
func tags(meta map[string]any, body string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimPrefix(strings.TrimSpace(s), "#")
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	switch v := meta["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// title prefers a frontmatter title, then the first level-one heading.
func title(meta map[string]any, body string) string {
	if s, ok := meta["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	for _, line := range strings.Split(body, "\n") {
		if h, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(h)
		}
	}
	return ""
}
