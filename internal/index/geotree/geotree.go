// Package geotree implements a prefix tree over geohash strings. Nodes live in
// a slice arena and reference each other by index; freed slots are reused.
//
// A Tree is not safe for concurrent use. The owning store serializes access.
package geotree

import (
	"iter"
)

// Alphabet is the geohash base32 alphabet in symbol order.
const Alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

const (
	fanout = len(Alphabet)
	root   = 0
	none   = 0 // root is never a child, so index 0 doubles as "no child"
)

var symbolIndex = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		t[Alphabet[i]] = int8(i)
	}
	return t
}()

type node struct {
	parent   int32
	symbol   int8
	present  bool
	children uint8
	child    [fanout]int32
}

type Tree struct {
	nodes   []node
	free    []int32
	present int
}

func New() *Tree {
	return &Tree{nodes: []node{{parent: -1, symbol: -1}}}
}

// Insert marks hash present, creating missing ancestors. It returns false if
// hash is already present or is not a geohash string.
func (t *Tree) Insert(hash string) bool {
	if !valid(hash) {
		return false
	}
	cur := int32(root)
	for i := 0; i < len(hash); i++ {
		s := symbolIndex[hash[i]]
		next := t.nodes[cur].child[s]
		if next == none {
			next = t.alloc(cur, s)
			t.nodes[cur].child[s] = next
			t.nodes[cur].children++
		}
		cur = next
	}
	if t.nodes[cur].present {
		return false
	}
	t.nodes[cur].present = true
	t.present++
	return true
}

func (t *Tree) Exists(hash string) bool {
	n, ok := t.find(hash)
	return ok && t.nodes[n].present
}

// Remove clears the present mark on hash and releases every ancestor that is
// left with no present descendant. It returns false if hash was not present.
func (t *Tree) Remove(hash string) bool {
	n, ok := t.find(hash)
	if !ok || !t.nodes[n].present {
		return false
	}
	t.nodes[n].present = false
	t.present--

	for n != root && !t.nodes[n].present && t.nodes[n].children == 0 {
		p := t.nodes[n].parent
		t.nodes[p].child[t.nodes[n].symbol] = none
		t.nodes[p].children--
		t.release(n)
		n = p
	}
	return true
}

func (t *Tree) Empty() bool { return t.present == 0 }

// Len is the number of present hashes.
func (t *Tree) Len() int { return t.present }

// Nodes is the number of live nodes, root included.
func (t *Tree) Nodes() int { return len(t.nodes) - len(t.free) }

// Walk visits every present hash of length <= maxDepth in depth-first order,
// parents before children, siblings in alphabet order. Subtrees deeper than
// maxDepth are never entered. Returning false from visit stops the walk.
func (t *Tree) Walk(maxDepth int, visit func(hash string) bool) {
	if maxDepth < 0 {
		return
	}
	buf := make([]byte, 0, min(maxDepth, 16))
	t.walk(root, buf, maxDepth, visit)
}

// Traverse is Walk as a restartable sequence.
func (t *Tree) Traverse(maxDepth int) iter.Seq[string] {
	return func(yield func(string) bool) {
		t.Walk(maxDepth, yield)
	}
}

func (t *Tree) walk(n int32, prefix []byte, maxDepth int, visit func(string) bool) bool {
	nd := &t.nodes[n]
	if nd.present && !visit(string(prefix)) {
		return false
	}
	if len(prefix) == maxDepth || nd.children == 0 {
		return true
	}
	for s, c := range nd.child {
		if c == none {
			continue
		}
		if !t.walk(c, append(prefix, Alphabet[s]), maxDepth, visit) {
			return false
		}
	}
	return true
}

func (t *Tree) find(hash string) (int32, bool) {
	if !valid(hash) {
		return 0, false
	}
	cur := int32(root)
	for i := 0; i < len(hash); i++ {
		cur = t.nodes[cur].child[symbolIndex[hash[i]]]
		if cur == none {
			return 0, false
		}
	}
	return cur, true
}

func (t *Tree) alloc(parent int32, s int8) int32 {
	nd := node{parent: parent, symbol: s}
	if k := len(t.free); k > 0 {
		idx := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[idx] = nd
		return idx
	}
	t.nodes = append(t.nodes, nd)
	return int32(len(t.nodes) - 1)
}

func (t *Tree) release(n int32) {
	t.nodes[n] = node{parent: -1, symbol: -1}
	t.free = append(t.free, n)
}

func valid(hash string) bool {
	if hash == "" {
		return false
	}
	for i := 0; i < len(hash); i++ {
		if symbolIndex[hash[i]] < 0 {
			return false
		}
	}
	return true
}
