package adapter

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// CatalogStore loads the declarative mutation template set. Schema validation
// happens here, at load time; semantic validation (layer references, action
// payloads) belongs to the domain catalog.
type CatalogStore interface {
	// LoadTemplates reads and schema-validates a rules file.
	LoadTemplates(ctx context.Context, path m.Path) ([]m.MutationTemplate, error)
}

// rulesFile is the top-level shape of a rules YAML document.
type rulesFile struct {
	Templates []m.MutationTemplate `yaml:"templates" validate:"required,min=1,dive"`
}

// YAMLCatalogStore reads template rules from YAML files.
type YAMLCatalogStore struct {
	fs       RepoFSAdapter
	validate *validator.Validate
}

// NewYAMLCatalogStore constructs a YAMLCatalogStore.
func NewYAMLCatalogStore(fs RepoFSAdapter) *YAMLCatalogStore {
	return &YAMLCatalogStore{
		fs:       fs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// LoadTemplates reads and schema-validates a rules file. Malformed documents
// fail fast; nothing is discovered only at apply time.
func (s *YAMLCatalogStore) LoadTemplates(ctx context.Context, path m.Path) ([]m.MutationTemplate, error) {
	raw, err := s.fs.ReadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	var doc rulesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	if err := s.validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	return doc.Templates, nil
}
