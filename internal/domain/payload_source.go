package domain

import (
	"context"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// PayloadSource supplies the insert payload for a (template, target) pair.
// The literal source always works; generated sources (an external model, for
// instance) must be explicitly configured and fail fast when they are not,
// never silently fall back to something else.
type PayloadSource interface {
	Render(ctx context.Context, template m.MutationTemplate, target m.FileEntry, intensity m.Intensity) (string, error)
}

// LiteralPayloadSource renders the template content verbatim.
type LiteralPayloadSource struct{}

// NewLiteralPayloadSource constructs the default payload source.
func NewLiteralPayloadSource() *LiteralPayloadSource {
	return &LiteralPayloadSource{}
}

// Render returns the template's own content.
func (s *LiteralPayloadSource) Render(ctx context.Context, template m.MutationTemplate, _ m.FileEntry, _ m.Intensity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return template.Content, nil
}

// GeneratedPayloadSource stands in for an external generation capability.
// It carries its configuration and refuses to render until configured.
type GeneratedPayloadSource struct {
	endpoint string
	generate func(ctx context.Context, template m.MutationTemplate, target m.FileEntry, intensity m.Intensity) (string, error)
}

// NewGeneratedPayloadSource wires an external generator. Both the endpoint
// and the generate function are required.
func NewGeneratedPayloadSource(
	endpoint string,
	generate func(ctx context.Context, template m.MutationTemplate, target m.FileEntry, intensity m.Intensity) (string, error),
) *GeneratedPayloadSource {
	return &GeneratedPayloadSource{endpoint: endpoint, generate: generate}
}

// Render invokes the configured generator, or fails with a
// ConfigurationError when the source was never configured.
func (s *GeneratedPayloadSource) Render(ctx context.Context, template m.MutationTemplate, target m.FileEntry, intensity m.Intensity) (string, error) {
	if s.endpoint == "" || s.generate == nil {
		return "", &ConfigurationError{Reason: "generated payload source invoked without configuration"}
	}

	return s.generate(ctx, template, target, intensity)
}
