package filetree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ExcludePrefix marks directories that are skipped entirely.
	ExcludePrefix = "_"
	// GroupingPrefix forces a directory to be treated as a grouping; it is
	// stripped from the display name.
	GroupingPrefix = "+"
	// MarkerFile is the per-directory metadata override file.
	MarkerFile = ".folio.toml"
)

// Node is one directory in the source tree. Built once by Build and treated
// as immutable afterwards.
type Node struct {
	Name     string
	Path     string
	Files    map[string]FileHandle
	Children map[string]*Node

	// Marker / hint metadata. Zero values mean "no override".
	TypeHint Kind
	Label    string
	Language string
	Behavior []string
}

// Warning records a non-fatal problem encountered while building the tree.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	if w.Path == "" {
		return w.Message
	}
	return w.Path + ": " + w.Message
}

// marker is the schema of the MarkerFile TOML.
type marker struct {
	Label    string   `toml:"label"`
	Language string   `toml:"language"`
	Kind     string   `toml:"kind"`
	Behavior []string `toml:"behavior"`
}

// Build constructs a rooted tree from a flat list of handles by splitting
// relative paths. Directories with ExcludePrefix are skipped; GroupingPrefix
// is stripped from display names; a malformed marker file yields a warning
// and defaults, never a failure.
func Build(rootName string, handles []FileHandle) (*Node, []Warning, error) {
	if rootName == "" {
		rootName = "import"
	}
	root := newNode(rootName, "")
	var warnings []Warning

	// Deterministic construction order regardless of input order.
	sorted := append([]FileHandle(nil), handles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelPath() < sorted[j].RelPath() })

	for _, handle := range sorted {
		rel := strings.Trim(handle.RelPath(), "/")
		if rel == "" {
			rel = handle.Name()
		}
		segments := strings.Split(rel, "/")
		dirs, filename := segments[:len(segments)-1], segments[len(segments)-1]

		node, skipped := descend(root, dirs)
		if skipped {
			continue
		}
		if filename == MarkerFile {
			applyMarker(node, handle, &warnings)
			continue
		}
		if _, exists := node.Files[filename]; exists {
			return nil, nil, fmt.Errorf("duplicate path in input: %s", rel)
		}
		node.Files[filename] = handle
	}

	return root, warnings, nil
}

func newNode(name, path string) *Node {
	return &Node{
		Name:     name,
		Path:     path,
		Files:    make(map[string]FileHandle),
		Children: make(map[string]*Node),
	}
}

// descend walks or creates intermediate nodes, returning skipped=true when
// any segment carries the exclude prefix.
func descend(root *Node, dirs []string) (*Node, bool) {
	node := root
	for _, dir := range dirs {
		if strings.HasPrefix(dir, ExcludePrefix) {
			return nil, true
		}
		display := strings.TrimPrefix(dir, GroupingPrefix)
		child, ok := node.Children[dir]
		if !ok {
			path := display
			if node.Path != "" {
				path = node.Path + "/" + display
			}
			child = newNode(display, path)
			if strings.HasPrefix(dir, GroupingPrefix) {
				child.TypeHint = KindCollection
			}
			node.Children[dir] = child
		}
		node = child
	}
	return node, false
}

func applyMarker(node *Node, handle FileHandle, warnings *[]Warning) {
	r, err := handle.Open()
	if err != nil {
		*warnings = append(*warnings, Warning{Path: node.Path, Message: "marker unreadable: " + err.Error()})
		return
	}
	defer r.Close()

	var m marker
	decoder := toml.NewDecoder(r)
	if err := decoder.Decode(&m); err != nil {
		*warnings = append(*warnings, Warning{Path: node.Path, Message: "marker malformed, using defaults: " + err.Error()})
		return
	}

	if m.Label != "" {
		node.Label = m.Label
	}
	if m.Language != "" {
		node.Language = m.Language
	}
	if len(m.Behavior) > 0 {
		node.Behavior = append([]string(nil), m.Behavior...)
	}
	switch strings.ToLower(strings.TrimSpace(m.Kind)) {
	case "":
	case "manifest", "item":
		node.TypeHint = KindManifest
	case "collection", "grouping":
		node.TypeHint = KindCollection
	default:
		*warnings = append(*warnings, Warning{Path: node.Path, Message: fmt.Sprintf("marker kind %q unknown, ignoring", m.Kind)})
	}
}

// SortedChildren returns child nodes in deterministic name order.
func (n *Node) SortedChildren() []*Node {
	keys := make([]string, 0, len(n.Children))
	for key := range n.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	children := make([]*Node, 0, len(keys))
	for _, key := range keys {
		children = append(children, n.Children[key])
	}
	return children
}

// MediaFiles returns this node's files matching exts, unordered.
func (n *Node) MediaFiles(exts []string) []FileHandle {
	files := make([]FileHandle, 0, len(n.Files))
	for _, handle := range n.Files {
		if IsMedia(handle, exts) {
			files = append(files, handle)
		}
	}
	return files
}

// DisplayLabel is the marker label when present, otherwise the directory name.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Name
}
