package domain

import (
	"bytes"
	"context"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"ctxprobe.dev/pkg/ctxprobe/internal/adapter"
	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

const (
	// sniffLimit bounds how many bytes are inspected for binary detection
	// and content markers.
	sniffLimit = 8 * 1024

	// maxSniffSize is the file size above which content sniffing is skipped
	// and the file is classified by path only.
	maxSniffSize = 1 << 20

	// pathConfidence is assigned to files matched by layer path patterns.
	pathConfidence = 0.7

	// markerConfidence is assigned when content sniffing confirms the layer.
	markerConfidence = 0.95
)

// defaultIgnoreDirs are pruned from every walk.
var defaultIgnoreDirs = map[string]struct{}{
	".git":                {},
	".hg":                 {},
	".svn":                {},
	".idea":               {},
	".vscode":             {},
	"node_modules":        {},
	"dist":                {},
	"build":               {},
	".venv":               {},
	"venv":                {},
	"__pycache__":         {},
	adapter.StateDirName: {},
}

// layerPathRules maps each layer to the path patterns that classify into it.
// Patterns without a slash match the basename anywhere in the tree.
var layerPathRules = map[m.Layer][]string{
	m.LayerAIInstructions: {
		".cursorrules",
		"CLAUDE.md",
		"AGENTS.md",
		".github/copilot-instructions.md",
		".windsurfrules",
		".cursor/rules/*",
		".cursor/prompts/*",
		".cursor/tool-configs/*",
	},
	m.LayerTemplates: {
		".github/pull_request_template.md",
		".github/ISSUE_TEMPLATE/*",
	},
	m.LayerDocumentation: {
		"README.md",
		"CONTRIBUTING.md",
		"SECURITY.md",
		"docs/**/*.md",
		"adr/**/*.md",
	},
	m.LayerConfiguration: {
		"pyproject.toml",
		"package.json",
		"Dockerfile",
		"docker-compose.yml",
		".env",
		"Makefile",
	},
	m.LayerTooling: {
		".github/workflows/*",
		".gitlab-ci.yml",
		"Makefile",
		"scripts/**/*",
	},
	m.LayerInfrastructure: {
		"**/*.tf",
		"**/*.hcl",
		"terraform/**/*",
		"infra/**/*",
		"docker-compose*.yml",
		"docker-compose*.yaml",
		"Dockerfile*",
		"k8s/**/*.yaml",
		"k8s/**/*.yml",
		"kubernetes/**/*.yaml",
		"kubernetes/**/*.yml",
		"helm/**/*.yaml",
		"cloudformation/**/*.yaml",
		"cloudformation/**/*.json",
		"ansible/**/*.yml",
		"ansible/**/*.yaml",
	},
	m.LayerCodeMetadata: {
		"**/*.py",
		"**/*.js",
		"**/*.ts",
		"**/*.go",
		"**/*.java",
		"**/*.rs",
		"**/*.rb",
	},
}

// layerMarkers are lowercase substrings that, when found in the sniffed
// prefix of a path-classified file, confirm the classification.
var layerMarkers = map[m.Layer][]string{
	m.LayerAIInstructions: {"you are", "instructions", "when writing code", "assistant"},
	m.LayerDocumentation:  {"# ", "## ", "getting started"},
	m.LayerConfiguration:  {"\"scripts\"", "[tool.", "dependencies"},
	m.LayerInfrastructure: {"resource \"", "apiversion:", "services:"},
	m.LayerTooling:        {"jobs:", "stages:", "#!/"},
	m.LayerTemplates:      {"## ", "checklist"},
}

// ScanOptions narrows a scan with optional include/exclude glob patterns,
// applied to repo-relative paths.
type ScanOptions struct {
	Include []string
	Exclude []string
}

// LayerScanner classifies repository files into context layers.
type LayerScanner interface {
	Scan(ctx context.Context, root m.Path, opts ScanOptions) (m.ScanResult, error)
}

type layerScanner struct {
	fs adapter.RepoFSAdapter
}

// NewLayerScanner constructs the default path+content scanner.
func NewLayerScanner(fs adapter.RepoFSAdapter) LayerScanner {
	return &layerScanner{fs: fs}
}

// Scan walks the repository, classifies every regular file and returns a
// deterministic layer map: identical repo state always yields an identical
// result. Classification is parallelized per file with no shared mutable
// state; results are merged and sorted afterwards.
func (s *layerScanner) Scan(ctx context.Context, root m.Path, opts ScanOptions) (m.ScanResult, error) {
	type walkedFile struct {
		full m.Path
		rel  m.Path
		size int64
	}

	var files []walkedFile

	var issues []m.ScanIssue

	err := s.fs.Walk(ctx, root, defaultIgnoreDirs, func(path m.Path, info os.FileInfo, symlink bool) error {
		if symlink {
			// Never follow symlinks; cycle safety.
			return nil
		}

		rel, relErr := s.fs.RelPath(root, path)
		if relErr != nil {
			return relErr
		}

		if info == nil {
			issues = append(issues, m.ScanIssue{Path: rel, Message: "unreadable file metadata"})
			return nil
		}

		if !includePath(rel, opts) {
			return nil
		}

		files = append(files, walkedFile{full: path, rel: rel, size: info.Size()})

		return nil
	})
	if err != nil {
		return m.ScanResult{}, err
	}

	type classified struct {
		entry m.FileEntry
		issue *m.ScanIssue
	}

	results := make([]classified, len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())

	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			entry := m.FileEntry{RelPath: file.rel, FullPath: file.full, Size: file.size}

			matched := matchLayers(file.rel)
			if len(matched) == 0 {
				return nil
			}

			prefix, readErr := s.sniff(groupCtx, file.full, file.size)
			if readErr != nil {
				results[i] = classified{issue: &m.ScanIssue{Path: file.rel, Message: readErr.Error()}}
				return nil
			}

			for _, layer := range matched {
				confidence := pathConfidence
				if prefix != nil && hasMarker(layer, prefix) {
					confidence = markerConfidence
				}

				entry.Tags = append(entry.Tags, m.LayerTag{Layer: layer, Confidence: confidence})
			}

			results[i] = classified{entry: entry}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return m.ScanResult{}, err
	}

	layers := make(map[m.Layer][]m.FileEntry)

	for _, result := range results {
		if result.issue != nil {
			issues = append(issues, *result.issue)
			continue
		}

		for _, tag := range result.entry.Tags {
			layers[tag.Layer] = append(layers[tag.Layer], result.entry)
		}
	}

	for layer := range layers {
		entries := layers[layer]
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].RelPath < entries[j].RelPath
		})
	}

	sort.Slice(issues, func(i, j int) bool {
		return issues[i].Path < issues[j].Path
	})

	return m.ScanResult{RepoPath: root, Layers: layers, Issues: issues}, nil
}

// sniff reads the head of a file for marker matching. Oversized and binary
// files yield a nil prefix and keep their path-rule classification.
func (s *layerScanner) sniff(ctx context.Context, path m.Path, size int64) ([]byte, error) {
	if size > maxSniffSize {
		return nil, nil
	}

	content, err := s.fs.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}

	prefix := content
	if len(prefix) > sniffLimit {
		prefix = prefix[:sniffLimit]
	}

	if bytes.IndexByte(prefix, 0) >= 0 {
		return nil, nil
	}

	return prefix, nil
}

// matchLayers returns the layers whose path rules match rel, in AllLayers
// order for determinism.
func matchLayers(rel m.Path) []m.Layer {
	var matched []m.Layer

	for _, layer := range m.AllLayers {
		for _, pattern := range layerPathRules[layer] {
			if matchPattern(pattern, rel) {
				matched = append(matched, layer)
				break
			}
		}
	}

	return matched
}

// matchPattern matches a rule pattern against a slash-separated relative
// path. Patterns without a separator match the basename anywhere in the
// tree; patterns with separators match the full relative path.
func matchPattern(pattern string, rel m.Path) bool {
	target := string(rel)

	if !strings.Contains(pattern, "/") {
		idx := strings.LastIndexByte(target, '/')
		target = target[idx+1:]
	}

	ok, err := doublestar.Match(pattern, target)
	if err != nil {
		return false
	}

	return ok
}

func hasMarker(layer m.Layer, prefix []byte) bool {
	markers, ok := layerMarkers[layer]
	if !ok {
		return false
	}

	lowered := strings.ToLower(string(prefix))

	for _, marker := range markers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}

	return false
}

func includePath(rel m.Path, opts ScanOptions) bool {
	for _, pattern := range opts.Exclude {
		if matchPattern(pattern, rel) {
			return false
		}
	}

	if len(opts.Include) == 0 {
		return true
	}

	for _, pattern := range opts.Include {
		if matchPattern(pattern, rel) {
			return true
		}
	}

	return false
}
