package unpack

import "slices"

// ExtractedFiles records every path written during one extraction call.
// Paths are slash-separated and relative to the extraction destination, in
// the order they were written. A ledger is only valid for the call that
// produced it; on failure it is discarded.
type ExtractedFiles struct {
	Files []string
	Dirs  []string
}

func (e *ExtractedFiles) addFile(path string) {
	e.Files = append(e.Files, path)
}

func (e *ExtractedFiles) addDir(path string) {
	e.Dirs = append(e.Dirs, path)
}

// HasFile reports whether path was recorded as an extracted file.
func (e *ExtractedFiles) HasFile(path string) bool {
	return slices.Contains(e.Files, path)
}

// HasDir reports whether path was recorded as an extracted directory.
func (e *ExtractedFiles) HasDir(path string) bool {
	return slices.Contains(e.Dirs, path)
}
