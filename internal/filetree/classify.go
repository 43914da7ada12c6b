package filetree

// Kind classifies a node in the source tree.
type Kind string

const (
	KindUnknown    Kind = ""
	KindCollection Kind = "collection"
	KindManifest   Kind = "manifest"
)

// Classify derives the archival role of a node. Tie-break order: explicit
// hint (marker kind or grouping prefix) > leaf-with-media > has-subdirectories
// > default grouping. Pure: repeated calls on an unchanged node always agree.
func Classify(n *Node, mediaExts []string) Kind {
	if n.TypeHint != KindUnknown {
		return n.TypeHint
	}
	if len(n.Children) == 0 && len(n.MediaFiles(mediaExts)) > 0 {
		return KindManifest
	}
	if len(n.Children) > 0 {
		return KindCollection
	}
	return KindCollection
}
