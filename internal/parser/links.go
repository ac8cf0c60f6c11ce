package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sudo-Harshk/NoteDiscovery/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	inlineRe   = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
	titleRe    = regexp.MustCompile(`\s+("[^"]*"|'[^']*')$`)
)

// externalPrefixes mark inline destinations that never point at a local note.
var externalPrefixes = []string{"http://", "https://", "mailto:", "#", "data:"}

// ExtractLinks scans raw note text for [[target]] / [[target|label]] /
// [[target#heading]] and [text](destination) references. It is purely
// textual: duplicates and document order are preserved and nothing is
// resolved.
func ExtractLinks(text string) models.Links {
	return models.Links{
		Wiki:     extractWiki(text),
		Markdown: extractInline(text),
	}
}

func extractWiki(text string) []string {
	var out []string
	for _, m := range wikilinkRe.FindAllStringSubmatch(text, -1) {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		// [[Note#Heading]] points at Note; [[#Heading]] stays inside this note.
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		out = append(out, target)
	}
	return out
}

func extractInline(text string) []string {
	var out []string
	for _, m := range inlineRe.FindAllStringSubmatch(text, -1) {
		if dest, ok := localDestination(m[2]); ok {
			out = append(out, dest)
		}
	}
	return out
}

// localDestination normalizes an inline link destination and reports whether
// it points at a local document.
func localDestination(raw string) (string, bool) {
	dest := strings.TrimSpace(raw)
	if strings.HasPrefix(dest, "<") && strings.HasSuffix(dest, ">") {
		dest = strings.TrimSpace(dest[1 : len(dest)-1])
	} else {
		dest = strings.TrimSpace(titleRe.ReplaceAllString(dest, ""))
	}
	lower := strings.ToLower(dest)
	for _, p := range externalPrefixes {
		if strings.HasPrefix(lower, p) {
			return "", false
		}
	}
	if i := strings.Index(dest, "#"); i >= 0 {
		dest = dest[:i]
	}
	if decoded, err := url.PathUnescape(dest); err == nil {
		dest = decoded
	}
	dest = strings.TrimPrefix(dest, "./")
	if dest == "" {
		return "", false
	}
	return dest, true
}
