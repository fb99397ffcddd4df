// Package tree materializes flat comment lists into depth-annotated
// pre-order sequences.
package tree

import (
	"iter"
	"sort"

	"github.com/threaded-comments-api/internal/models"
)

// Tree is the materialized comment hierarchy of one target and kind
type Tree struct {
	roots    []*models.Comment
	children map[int64][]*models.Comment
}

// Build indexes comments by parent. Siblings keep ID order, which is
// insertion order. A non-nil root restricts the tree to that comment's
// subtree; an unknown root yields an empty tree. Comments whose parent is not
// in the input are dropped with their descendants.
func Build(comments []*models.Comment, root *int64) *Tree {
	sorted := make([]*models.Comment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int64]*models.Comment, len(sorted))
	for _, c := range sorted {
		byID[c.ID] = c
	}

	t := &Tree{children: make(map[int64][]*models.Comment)}
	for _, c := range sorted {
		if c.ParentID == nil {
			if root == nil {
				t.roots = append(t.roots, c)
			}
			continue
		}
		t.children[*c.ParentID] = append(t.children[*c.ParentID], c)
	}

	if root != nil {
		if c, ok := byID[*root]; ok {
			t.roots = []*models.Comment{c}
		}
	}
	return t
}

// Nodes walks the tree in pre-order. Children follow their parent before the
// parent's next sibling; roots have depth 0.
func (t *Tree) Nodes() iter.Seq[models.Node] {
	return func(yield func(models.Node) bool) {
		seen := make(map[int64]bool)
		var walk func(c *models.Comment, depth int) bool
		walk = func(c *models.Comment, depth int) bool {
			if seen[c.ID] {
				return true
			}
			seen[c.ID] = true
			if !yield(models.Node{Comment: c, Depth: depth}) {
				return false
			}
			for _, child := range t.children[c.ID] {
				if !walk(child, depth+1) {
					return false
				}
			}
			return true
		}
		for _, r := range t.roots {
			if !walk(r, 0) {
				return
			}
		}
	}
}

// Slice collects the pre-order walk
func (t *Tree) Slice() []models.Node {
	nodes := make([]models.Node, 0, len(t.roots))
	for n := range t.Nodes() {
		nodes = append(nodes, n)
	}
	return nodes
}

// Len counts the comments reachable from the roots
func (t *Tree) Len() int {
	n := 0
	for range t.Nodes() {
		n++
	}
	return n
}

// Depth returns the depth a new reply to parent would have, walking parent
// links through lookup. A nil parent means a root-level comment (0).
func Depth(parent *models.Comment, lookup func(id int64) *models.Comment) int {
	depth := 0
	seen := make(map[int64]bool)
	for c := parent; c != nil; {
		if seen[c.ID] {
			break
		}
		seen[c.ID] = true
		depth++
		if c.ParentID == nil {
			break
		}
		c = lookup(*c.ParentID)
	}
	return depth
}

// Reachable reports whether c would appear in the public tree: c and every
// ancestor up to a root are visible.
func Reachable(c *models.Comment, lookup func(id int64) *models.Comment) bool {
	seen := make(map[int64]bool)
	for c != nil {
		if seen[c.ID] || !c.Visible() {
			return false
		}
		seen[c.ID] = true
		if c.ParentID == nil {
			return true
		}
		c = lookup(*c.ParentID)
	}
	return false
}
