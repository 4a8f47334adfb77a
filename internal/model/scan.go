package model

// LayerTag records one layer classification of a file together with the
// scanner's confidence in it, in (0, 1].
type LayerTag struct {
	Layer      Layer
	Confidence float64
}

// FileEntry is one classified repository file. RelPath is always
// slash-separated and relative to the scanned root; FullPath is absolute.
type FileEntry struct {
	RelPath  Path
	FullPath Path
	Tags     []LayerTag
	Size     int64
}

// ConfidenceFor returns the confidence of the given layer tag, or 0 when the
// entry does not carry that layer.
func (f FileEntry) ConfidenceFor(layer Layer) float64 {
	for _, tag := range f.Tags {
		if tag.Layer == layer {
			return tag.Confidence
		}
	}

	return 0
}

// ScanIssue is a non-fatal per-file scan failure. The file is excluded from
// candidacy; scanning continues.
type ScanIssue struct {
	Path    Path
	Message string
}

// ScanResult is the layer map produced by one repository scan. It is built
// fresh per scan and discarded after planning. Files within each layer are
// sorted by relative path, so identical repo state yields an identical
// result.
type ScanResult struct {
	RepoPath Path
	Layers   map[Layer][]FileEntry
	Issues   []ScanIssue
}

// FilesFor returns the classified files of one layer.
func (s ScanResult) FilesFor(layer Layer) []FileEntry {
	return s.Layers[layer]
}

// TotalFiles counts distinct classified files across all layers.
func (s ScanResult) TotalFiles() int {
	seen := make(map[Path]struct{})

	for _, entries := range s.Layers {
		for _, entry := range entries {
			seen[entry.RelPath] = struct{}{}
		}
	}

	return len(seen)
}
