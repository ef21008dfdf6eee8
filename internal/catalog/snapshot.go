package catalog

// Listing is a point-in-time view of one catalog directory. An event handler
// reads it once and reuses it for both menu rendering and delivery, so a
// concurrent filesystem change cannot split one interaction across two
// different views.
type Listing struct {
	Segments []string
	Dirs     []string
	Files    []string
}

// Snapshot reads the directories and files under the given segments in a
// single pass.
func (ix *Index) Snapshot(segments ...string) Listing {
	return Listing{
		Segments: append([]string(nil), segments...),
		Dirs:     ix.ListDirs(segments...),
		Files:    ix.ListFiles(segments...),
	}
}

// Empty reports whether the listing has neither directories nor files
func (l Listing) Empty() bool {
	return len(l.Dirs) == 0 && len(l.Files) == 0
}
