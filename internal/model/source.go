// Package model defines the data structures for context mutation runs.
package model

// Path represents a file system path.
type Path string

// Layer classifies the role a file plays in providing context to an AI
// coding agent.
type Layer string

const (
	// LayerAIInstructions covers agent instruction files (.cursorrules, CLAUDE.md, AGENTS.md, ...).
	LayerAIInstructions Layer = "ai_instructions"
	// LayerDocumentation covers README, CONTRIBUTING and docs trees.
	LayerDocumentation Layer = "documentation"
	// LayerConfiguration covers build and project manifests (package.json, Makefile, ...).
	LayerConfiguration Layer = "configuration"
	// LayerInfrastructure covers IaC and deployment descriptors (terraform, k8s, docker).
	LayerInfrastructure Layer = "infrastructure"
	// LayerTemplates covers PR/issue templates.
	LayerTemplates Layer = "templates"
	// LayerTooling covers CI pipelines and scripts.
	LayerTooling Layer = "tooling"
	// LayerCodeMetadata covers source files whose names/comments feed agent context.
	LayerCodeMetadata Layer = "code_metadata"
)

// AllLayers lists every known layer in cumulative layer-level order:
// level N enables AllLayers[:N].
var AllLayers = []Layer{
	LayerAIInstructions,
	LayerDocumentation,
	LayerConfiguration,
	LayerInfrastructure,
	LayerTemplates,
	LayerTooling,
	LayerCodeMetadata,
}

// KnownLayer reports whether layer is one of the closed layer set.
func KnownLayer(layer Layer) bool {
	for _, l := range AllLayers {
		if l == layer {
			return true
		}
	}

	return false
}

// LayersForLevel returns the cumulative layer set for a level in [1,7].
// Out-of-range levels are clamped.
func LayersForLevel(level int) []Layer {
	if level < 1 {
		level = 1
	}

	if level > len(AllLayers) {
		level = len(AllLayers)
	}

	return AllLayers[:level]
}

// Intensity is the coarse control of how many and how strong mutations a
// plan contains.
type Intensity string

const (
	// IntensitySubtle keeps plans minimal: one target per template, trimmed payloads.
	IntensitySubtle Intensity = "subtle"
	// IntensityNormal is the default balance.
	IntensityNormal Intensity = "normal"
	// IntensityStrong maximizes coverage: full payloads, all replacement occurrences.
	IntensityStrong Intensity = "strong"
)

// KnownIntensity reports whether intensity is one of the closed set.
func KnownIntensity(intensity Intensity) bool {
	switch intensity {
	case IntensitySubtle, IntensityNormal, IntensityStrong:
		return true
	}

	return false
}
