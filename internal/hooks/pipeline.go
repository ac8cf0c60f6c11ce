// Package hooks runs ordered content transforms around note reads and writes.
//
// Composition order on write: every OnCreate (new notes only), then every
// OnSave, then the store persists. On read: the store loads, then every
// OnLoad runs before the content reaches the caller.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Transform rewrites note content for path.
type Transform func(ctx context.Context, path, content string) (string, error)

// Hook is a named set of optional callbacks.
type Hook struct {
	Name     string
	OnCreate Transform
	OnSave   Transform
	OnLoad   Transform
	OnDelete func(ctx context.Context, path string)
}

// Pipeline is an ordered list of hooks. The zero value is an empty pipeline.
type Pipeline struct {
	hooks  []Hook
	logger *slog.Logger
}

// New returns a pipeline running hooks in the given order.
func New(logger *slog.Logger, hooks ...Hook) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{hooks: hooks, logger: logger}
}

// Register appends h to the end of the pipeline. Not safe for use once the
// pipeline is serving requests.
func (p *Pipeline) Register(h Hook) {
	p.hooks = append(p.hooks, h)
}

// Names lists registered hooks in run order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.hooks))
	for i, h := range p.hooks {
		out[i] = h.Name
	}
	return out
}

// BeforeWrite applies create transforms when created is true, then save
// transforms, returning the content to persist.
func (p *Pipeline) BeforeWrite(ctx context.Context, path, content string, created bool) (string, error) {
	var err error
	if created {
		if content, err = p.run(ctx, "create", path, content, func(h Hook) Transform { return h.OnCreate }); err != nil {
			return "", err
		}
	}
	return p.run(ctx, "save", path, content, func(h Hook) Transform { return h.OnSave })
}

// AfterRead applies load transforms to stored content.
func (p *Pipeline) AfterRead(ctx context.Context, path, content string) (string, error) {
	return p.run(ctx, "load", path, content, func(h Hook) Transform { return h.OnLoad })
}

// Deleted notifies every hook that path was removed.
func (p *Pipeline) Deleted(ctx context.Context, path string) {
	if p == nil {
		return
	}
	for _, h := range p.hooks {
		if h.OnDelete != nil {
			h.OnDelete(ctx, path)
		}
	}
}

func (p *Pipeline) run(ctx context.Context, stage, path, content string, pick func(Hook) Transform) (string, error) {
	if p == nil {
		return content, nil
	}
	for _, h := range p.hooks {
		fn := pick(h)
		if fn == nil {
			continue
		}
		out, err := fn(ctx, path, content)
		if err != nil {
			logger := p.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("hook failed",
				slog.String("hook", h.Name),
				slog.String("stage", stage),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return "", fmt.Errorf("hooks: %s %s: %w", h.Name, stage, err)
		}
		content = out
	}
	return content, nil
}

// NormalizeNewlines converts CRLF and lone CR line endings to LF on save.
func NormalizeNewlines() Hook {
	return Hook{
		Name: "normalize_newlines",
		OnSave: func(_ context.Context, _, content string) (string, error) {
			content = strings.ReplaceAll(content, "\r\n", "\n")
			return strings.ReplaceAll(content, "\r", "\n"), nil
		},
	}
}

// TrailingNewline makes sure non-empty notes end with a newline on save.
func TrailingNewline() Hook {
	return Hook{
		Name: "trailing_newline",
		OnSave: func(_ context.Context, _, content string) (string, error) {
			if content == "" || strings.HasSuffix(content, "\n") {
				return content, nil
			}
			return content + "\n", nil
		},
	}
}
