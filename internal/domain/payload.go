package domain

import (
	"path"
	"sort"
	"strings"

	m "ctxprobe.dev/pkg/ctxprobe/internal/model"
)

// fileKind drives payload formatting and insertion anchoring.
type fileKind int

const (
	kindMarkdown fileKind = iota
	kindHashCommented
	kindSlashCommented
	kindJSON
	kindOtherText
)

func kindOf(p m.Path) fileKind {
	name := path.Base(string(p))
	ext := strings.ToLower(path.Ext(name))

	switch ext {
	case ".md":
		return kindMarkdown
	case ".py", ".tf", ".hcl", ".toml", ".yml", ".yaml", ".env", ".rb":
		return kindHashCommented
	case ".js", ".ts", ".jsx", ".tsx", ".go", ".java", ".rs":
		return kindSlashCommented
	case ".json":
		return kindJSON
	}

	if name == "Dockerfile" || strings.HasPrefix(name, "Dockerfile") ||
		name == "Makefile" || name == ".env" || strings.HasPrefix(name, "docker-compose") {
		return kindHashCommented
	}

	return kindOtherText
}

func isCodeFile(p m.Path) bool {
	switch strings.ToLower(path.Ext(string(p))) {
	case ".py", ".js", ".ts", ".jsx", ".tsx", ".go", ".java", ".rs", ".rb", ".tf", ".hcl":
		return true
	}

	return false
}

// sensitiveNameNeedles mark code files whose filename suggests they carry
// security-relevant context, making them worthwhile targets even at lower
// intensities.
var sensitiveNameNeedles = []string{
	"auth", "security", "validator", "crypto", "session", "jwt",
	"iam", "password", "network", "firewall", "acl", "policy",
	"encrypt", "ingress", "egress",
}

func isSensitiveCode(p m.Path) bool {
	name := strings.ToLower(path.Base(string(p)))

	for _, needle := range sensitiveNameNeedles {
		if strings.Contains(name, needle) {
			return true
		}
	}

	return false
}

// trimByIntensity limits how much of a template payload is used: subtle
// keeps the first line, normal the first two, strong everything.
func trimByIntensity(content string, intensity m.Intensity) string {
	var lines []string

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	switch intensity {
	case m.IntensitySubtle:
		if len(lines) == 0 {
			return ""
		}

		return lines[0]
	case m.IntensityStrong:
		return strings.Join(lines, "\n")
	default:
		if len(lines) > 2 {
			lines = lines[:2]
		}

		return strings.Join(lines, "\n")
	}
}

// replacementLimit is the per-pattern occurrence cap by intensity; -1 means
// every occurrence.
func replacementLimit(intensity m.Intensity) int {
	switch intensity {
	case m.IntensitySubtle:
		return 1
	case m.IntensityStrong:
		return -1
	default:
		return 2
	}
}

func commentBlock(prefix, content string) string {
	var b strings.Builder

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		b.WriteString(prefix)
		b.WriteString(" ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

// renderInsert computes the insertion offset and formatted payload for an
// insert template against pristine content. ok is false when the target
// kind cannot carry the payload (JSON has no comments), when the payload is
// already present, or when intensity gating excludes a code file.
func renderInsert(target m.Path, original []byte, content string, intensity m.Intensity) (int, string, bool) {
	if strings.Contains(string(original), strings.TrimSpace(content)) {
		return 0, "", false
	}

	if isCodeFile(target) {
		// Code files are only mutated based on intensity and sensitivity:
		// subtle never touches generic code, normal only sensitive files.
		switch intensity {
		case m.IntensitySubtle:
			return 0, "", false
		case m.IntensityNormal:
			if !isSensitiveCode(target) {
				return 0, "", false
			}
		case m.IntensityStrong:
		}
	}

	trimmed := trimByIntensity(content, intensity)
	if trimmed == "" {
		return 0, "", false
	}

	switch kindOf(target) {
	case kindMarkdown:
		return len(original), "\n\n## Context\n\n" + trimmed + "\n", true
	case kindHashCommented:
		return 0, commentBlock("#", trimmed), true
	case kindSlashCommented:
		return 0, commentBlock("//", trimmed), true
	case kindJSON:
		return 0, "", false
	default:
		return len(original), "\n" + commentBlock("#", trimmed), true
	}
}

// replaceSpans locates the pre-shift match spans for a replace template.
// Spans are ascending and non-overlapping; occurrences per pattern are
// capped by intensity. Replacements[i] rewrites spans[i].
func replaceSpans(original []byte, rules []m.ReplacementRule, intensity m.Intensity) ([]m.Span, []string) {
	limit := replacementLimit(intensity)
	text := string(original)

	type match struct {
		span m.Span
		repl string
	}

	var matches []match

	for _, rule := range rules {
		found := 0

		for from := 0; ; {
			idx := strings.Index(text[from:], rule.Pattern)
			if idx < 0 {
				break
			}

			start := from + idx
			matches = append(matches, match{
				span: m.Span{Start: start, End: start + len(rule.Pattern)},
				repl: rule.Replacement,
			})

			found++
			from = start + len(rule.Pattern)

			if limit >= 0 && found >= limit {
				break
			}
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].span.Start < matches[j].span.Start
	})

	// Patterns of different rules may hit overlapping bytes; keep the
	// earliest match and drop the rest, never silently merge.
	spans := make([]m.Span, 0, len(matches))
	repls := make([]string, 0, len(matches))

	for _, mt := range matches {
		if len(spans) > 0 && mt.span.Overlaps(spans[len(spans)-1]) {
			continue
		}

		spans = append(spans, mt.span)
		repls = append(repls, mt.repl)
	}

	return spans, repls
}
