// Package locations keeps track of where household objects live.
//
// Locations form a tree: rooms hold furniture, furniture holds zones, and so
// on down to buckets. A bucket is a leaf holding an ordered list of object
// names. Children keep their insertion order, so lookups that return "the
// first match" are deterministic.
package locations

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Separator joins path segments in the string form of a Path.
const Separator = "/"

var (
	// ErrEmptyPath is returned when a path has no segments.
	ErrEmptyPath = errors.New("locations: path must contain at least one segment")

	// ErrNotBucket is returned when a path resolves to a branch where a bucket
	// is required, or descends through a bucket.
	ErrNotBucket = errors.New("locations: path does not resolve to a bucket")
)

// Path addresses a node from the root, e.g. {"Kitchen", "Drawers", "Top"}.
type Path []string

// ParsePath splits s on Separator and drops empty segments.
func ParsePath(s string) Path {
	var p Path
	for _, seg := range strings.Split(s, Separator) {
		if seg = strings.TrimSpace(seg); seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p, Separator)
}

type node struct {
	bucket   bool
	objects  []string
	keys     []string
	children map[string]*node
}

func newBranch() *node {
	return &node{children: make(map[string]*node)}
}

func newBucket() *node {
	return &node{bucket: true, objects: []string{}}
}

func (n *node) empty() bool {
	if n.bucket {
		return len(n.objects) == 0
	}
	return len(n.keys) == 0
}

func (n *node) child(key string) (*node, bool) {
	if n.bucket {
		return nil, false
	}
	c, ok := n.children[key]
	return c, ok
}

func (n *node) set(key string, c *node) {
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = c
}

func (n *node) remove(key string) {
	if _, ok := n.children[key]; !ok {
		return
	}
	delete(n.children, key)
	n.keys = slices.DeleteFunc(n.keys, func(k string) bool { return k == key })
}

func (n *node) clone() *node {
	if n.bucket {
		return &node{bucket: true, objects: slices.Clone(n.objects)}
	}
	c := newBranch()
	for _, k := range n.keys {
		c.set(k, n.children[k].clone())
	}
	return c
}

// Tree is a hierarchy of locations. The zero value is not usable; call New.
// A Tree is not safe for concurrent use.
type Tree struct {
	root *node
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: newBranch()}
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	return &Tree{root: t.root.clone()}
}

// Clear removes every entry.
func (t *Tree) Clear() {
	t.root = newBranch()
}

func (t *Tree) walk(p Path) (*node, bool) {
	cur := t.root
	for _, key := range p {
		next, ok := cur.child(key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// HasPath reports whether p exists, as either a branch or a bucket.
func (t *Tree) HasPath(p Path) bool {
	if len(p) == 0 {
		return false
	}
	_, ok := t.walk(p)
	return ok
}

// Get returns the value at p: a []string for a bucket or a nested
// map[string]any for a branch.
func (t *Tree) Get(p Path) (any, bool) {
	if len(p) == 0 {
		return nil, false
	}
	n, ok := t.walk(p)
	if !ok {
		return nil, false
	}
	return snapshot(n), true
}

// bucket resolves p to a bucket, creating missing branches and the bucket
// itself when create is set.
func (t *Tree) bucket(p Path, create bool) (*node, error) {
	if len(p) == 0 {
		return nil, ErrEmptyPath
	}
	parent := t.root
	for _, key := range p[:len(p)-1] {
		if parent.bucket {
			return nil, fmt.Errorf("%w: cannot descend into %q", ErrNotBucket, key)
		}
		next, ok := parent.children[key]
		if !ok {
			if !create {
				return nil, nil
			}
			next = newBranch()
			parent.set(key, next)
		}
		parent = next
	}
	if parent.bucket {
		return nil, fmt.Errorf("%w: %s", ErrNotBucket, p)
	}

	leaf := p[len(p)-1]
	b, ok := parent.children[leaf]
	if !ok {
		if !create {
			return nil, nil
		}
		b = newBucket()
		parent.set(leaf, b)
	}
	if !b.bucket {
		return nil, fmt.Errorf("%w: %s", ErrNotBucket, p)
	}
	return b, nil
}

// DeletePath removes the node at p and prunes parents left empty.
// It reports whether anything was removed.
func (t *Tree) DeletePath(p Path) bool {
	if len(p) == 0 {
		return false
	}
	parent, ok := t.walk(p[:len(p)-1])
	if !ok || parent.bucket {
		return false
	}
	if _, ok := parent.children[p[len(p)-1]]; !ok {
		return false
	}
	parent.remove(p[len(p)-1])
	t.prune(p[:len(p)-1])
	return true
}

// prune walks from p towards the root removing empty nodes, stopping at the
// first node that still holds something.
func (t *Tree) prune(p Path) {
	for i := len(p); i > 0; i-- {
		parent, ok := t.walk(p[:i-1])
		if !ok {
			return
		}
		child, ok := parent.child(p[i-1])
		if !ok || !child.empty() {
			return
		}
		parent.remove(p[i-1])
	}
}

// AddObject appends name to the bucket at p, creating it when needed.
// Without allowDuplicates an existing entry is left alone and false is returned.
func (t *Tree) AddObject(p Path, name string, allowDuplicates bool) (bool, error) {
	b, err := t.bucket(p, true)
	if err != nil {
		return false, err
	}
	if !allowDuplicates && slices.Contains(b.objects, name) {
		return false, nil
	}
	b.objects = append(b.objects, name)
	return true, nil
}

// ExtendObjects adds several objects to one bucket and returns how many
// were inserted.
func (t *Tree) ExtendObjects(p Path, names []string, allowDuplicates bool) (int, error) {
	b, err := t.bucket(p, true)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for _, name := range names {
		if !allowDuplicates && slices.Contains(b.objects, name) {
			continue
		}
		b.objects = append(b.objects, name)
		inserted++
	}
	return inserted, nil
}

// RemoveObject removes one occurrence of name. With a nil path the first
// match in tree order is removed. Buckets and branches left empty are pruned.
func (t *Tree) RemoveObject(name string, p Path) bool {
	if p == nil {
		found, ok := t.FindObject(name)
		if !ok {
			return false
		}
		p = found
	}
	b, err := t.bucket(p, false)
	if err != nil || b == nil {
		return false
	}
	i := slices.Index(b.objects, name)
	if i < 0 {
		return false
	}
	b.objects = slices.Delete(b.objects, i, i+1)
	t.prune(p)
	return true
}

// MoveObject moves name from oldPath (or its first location when oldPath is
// nil) into the bucket at newPath.
func (t *Tree) MoveObject(name string, newPath, oldPath Path, allowDuplicates bool) (bool, error) {
	if err := t.checkBucketPath(newPath); err != nil {
		return false, err
	}
	if !t.RemoveObject(name, oldPath) {
		return false, nil
	}
	if _, err := t.AddObject(newPath, name, allowDuplicates); err != nil {
		return false, err
	}
	return true, nil
}

// checkBucketPath verifies that p could hold a bucket without mutating the tree.
func (t *Tree) checkBucketPath(p Path) error {
	if len(p) == 0 {
		return ErrEmptyPath
	}
	cur := t.root
	for i, key := range p {
		next, ok := cur.children[key]
		if !ok {
			return nil
		}
		last := i == len(p)-1
		if last && !next.bucket {
			return fmt.Errorf("%w: %s", ErrNotBucket, p)
		}
		if !last && next.bucket {
			return fmt.Errorf("%w: cannot descend into %q", ErrNotBucket, key)
		}
		cur = next
	}
	return nil
}

// FindObject returns the path of the first bucket holding name.
func (t *Tree) FindObject(name string) (Path, bool) {
	for obj, p := range t.Objects() {
		if obj == name {
			return p, true
		}
	}
	return nil, false
}

// ListObjects maps each object name to every bucket path holding it.
func (t *Tree) ListObjects() map[string][]Path {
	out := make(map[string][]Path)
	for obj, p := range t.Objects() {
		out[obj] = append(out[obj], p)
	}
	return out
}

// Objects yields each object with the path to its bucket, in tree order.
// Yielded paths are fresh slices owned by the caller.
func (t *Tree) Objects() iter.Seq2[string, Path] {
	return func(yield func(string, Path) bool) {
		walkObjects(t.root, nil, yield)
	}
}

func walkObjects(n *node, p Path, yield func(string, Path) bool) bool {
	if n.bucket {
		for _, obj := range n.objects {
			if !yield(obj, slices.Clone(p)) {
				return false
			}
		}
		return true
	}
	for _, k := range n.keys {
		if !walkObjects(n.children[k], append(p, k), yield) {
			return false
		}
	}
	return true
}

// Snapshot returns a deep copy of the tree as nested maps and string slices.
func (t *Tree) Snapshot() map[string]any {
	return snapshot(t.root).(map[string]any)
}

func snapshot(n *node) any {
	if n.bucket {
		return slices.Clone(n.objects)
	}
	m := make(map[string]any, len(n.keys))
	for _, k := range n.keys {
		m[k] = snapshot(n.children[k])
	}
	return m
}
