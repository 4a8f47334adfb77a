package model

// TemplateAction is the kind of edit a template produces.
type TemplateAction string

const (
	// ActionInsert appends or prepends the template payload to the target file.
	ActionInsert TemplateAction = "insert"
	// ActionReplace substitutes literal patterns inside the target file.
	ActionReplace TemplateAction = "replace"
)

// ReplacementRule is one literal search/replace pair of a replace template.
type ReplacementRule struct {
	Pattern     string `yaml:"pattern" validate:"required"`
	Replacement string `yaml:"replacement" validate:"required"`
}

// MutationTemplate is one declarative mutation rule. Templates are immutable
// once loaded; the catalog validates them before any planning starts.
type MutationTemplate struct {
	ID           string            `yaml:"id" validate:"required"`
	Layer        Layer             `yaml:"layer" validate:"required"`
	Category     string            `yaml:"category" validate:"required"`
	TargetGlobs  []string          `yaml:"target_globs" validate:"required,min=1,dive,required"`
	Action       TemplateAction    `yaml:"action" validate:"omitempty,oneof=insert replace"`
	Content      string            `yaml:"content"`
	Replacements []ReplacementRule `yaml:"replacements" validate:"dive"`
	Weight       float64           `yaml:"weight" validate:"omitempty,gt=0"`
}

// EffectiveAction resolves the default action (insert) for templates that
// omit the field.
func (t MutationTemplate) EffectiveAction() TemplateAction {
	if t.Action == "" {
		return ActionInsert
	}

	return t.Action
}

// EffectiveWeight resolves the default impact weight (1.0).
func (t MutationTemplate) EffectiveWeight() float64 {
	if t.Weight <= 0 {
		return 1.0
	}

	return t.Weight
}
