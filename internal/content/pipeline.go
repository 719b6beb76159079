package content

import (
	"context"
	"log/slog"
)

// Pipeline prepares chapter markup for display. Resources are resolved
// first so highlight and sanitize operate on the final document, and
// sanitize runs last so its guarantees hold for the installed markup.
type Pipeline struct {
	resolver *Resolver
	logger   *slog.Logger
}

func NewPipeline(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		resolver: NewResolver(logger),
		logger:   logger,
	}
}

// Process runs resolve, highlight, and sanitize over chapter markup.
// term may be empty, in which case the highlight stage is a no-op.
func (p *Pipeline) Process(ctx context.Context, htmlText string, fetch FetchFunc, term string) (string, error) {
	resolved, err := p.resolver.Resolve(ctx, htmlText, fetch)
	if err != nil {
		return "", err
	}

	highlighted, err := Highlight(resolved, term)
	if err != nil {
		return "", err
	}

	return Sanitize(highlighted)
}
