// Package hierarchy reconstructs a nested file/folder tree from the flat
// path listing served by the dependencies endpoint.
package hierarchy

import (
	"sort"
	"strings"

	"github.com/risksurface/surf/pkg/metrics"
)

// EntryType distinguishes files from folders in the flat listing.
type EntryType string

const (
	TypeFile   EntryType = "file"
	TypeFolder EntryType = "folder"
)

// Entry is one element of the flat listing. Paths are slash-delimited and
// unique; no parent-before-child order is guaranteed.
type Entry struct {
	Path string
	Type EntryType
	Size int64
}

// Node is one node of the reconstructed tree.
type Node struct {
	Name     string
	Type     EntryType
	Size     int64
	Depth    int
	Children []*Node
	Parent   *Node // Back-reference for path reconstruction
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Type == TypeFolder }

// FullPath joins ancestor names back into the original slash-delimited path.
func (n *Node) FullPath() string {
	if n.Parent == nil {
		return n.Name
	}
	return n.Parent.FullPath() + "/" + n.Name
}

// Build converts a flat listing into a forest of nodes with ordered
// children. Entries are sorted lexicographically by path first, which
// guarantees parents precede children when the parent is present. A node
// whose parent folder is missing from the listing is promoted to a root;
// incomplete trees are tolerated rather than rejected.
//
// Ordering is fully deterministic for a fixed input set: siblings sort
// folders before files, then alphabetically by name.
func Build(entries []Entry) []*Node {
	defer metrics.Timer(metrics.HierarchyBuild)()

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	var roots []*Node
	byPath := make(map[string]*Node, len(sorted))

	for _, entry := range sorted {
		if entry.Path == "" {
			continue
		}
		name := entry.Path
		var parent *Node
		if idx := strings.LastIndex(entry.Path, "/"); idx >= 0 {
			name = entry.Path[idx+1:]
			parent = byPath[entry.Path[:idx]]
		}

		node := &Node{
			Name:   name,
			Type:   entry.Type,
			Size:   entry.Size,
			Parent: parent,
		}
		byPath[entry.Path] = node

		if parent != nil {
			node.Depth = parent.Depth + 1
			parent.Children = append(parent.Children, node)
		} else {
			// Missing parent: promote to root, keeping the unresolved
			// prefix in the name so FullPath still equals the input path.
			node.Name = entry.Path
			roots = append(roots, node)
		}
	}

	sortSiblings(roots)
	return roots
}

// sortSiblings recursively orders each sibling set: folders before files,
// then alphabetically by name.
func sortSiblings(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].IsFolder() != nodes[j].IsFolder() {
			return nodes[i].IsFolder()
		}
		return nodes[i].Name < nodes[j].Name
	})
	for _, n := range nodes {
		sortSiblings(n.Children)
	}
}

// Walk visits every node of the forest depth-first in display order.
func Walk(roots []*Node, visit func(*Node)) {
	for _, n := range roots {
		visit(n)
		Walk(n.Children, visit)
	}
}

// Count returns the total number of nodes in the forest.
func Count(roots []*Node) int {
	total := 0
	Walk(roots, func(*Node) { total++ })
	return total
}
