// Package sections turns the flat, dot-numbered section list served by the
// API into an ordered forest for display.
package sections

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultPreviewLength is the label budget for real nodes.
const DefaultPreviewLength = 25

// FlatSection is one row of the document list.
type FlatSection struct {
	ID               string `json:"id" yaml:"id"`
	Section          string `json:"section,omitempty" yaml:"section,omitempty"`
	MainSection      string `json:"main_section" yaml:"main_section"`
	SubsectionNumber string `json:"subsection_number" yaml:"subsection_number"`
	Preview          string `json:"preview" yaml:"preview"`
}

// TreeNode is a node of the built forest. Placeholder nodes for main
// sections have an empty ID and are not selectable.
type TreeNode struct {
	ID            string     `json:"id" yaml:"id"`
	Label         string     `json:"label" yaml:"label"`
	SectionNumber string     `json:"section_number" yaml:"section_number"`
	Children      []TreeNode `json:"children" yaml:"children"`
}

// IsPlaceholder reports whether the node is a synthetic main-section header.
func (n TreeNode) IsPlaceholder() bool {
	return n.ID == ""
}

// DuplicatePolicy decides which record wins when two records share a key.
type DuplicatePolicy int

const (
	// KeepLast lets a later record overwrite an earlier one.
	KeepLast DuplicatePolicy = iota
	// KeepFirst ignores records whose key was already seen.
	KeepFirst
)

type buildOptions struct {
	previewLength int
	duplicates    DuplicatePolicy
}

// Option configures BuildTree.
type Option func(*buildOptions)

// WithPreviewLength sets the label budget. Values <= 0 use DefaultPreviewLength.
func WithPreviewLength(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.previewLength = n
		}
	}
}

// WithDuplicatePolicy selects how duplicate keys are resolved.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *buildOptions) {
		o.duplicates = p
	}
}

// node is the builder's working representation. Children are indexes into
// the builder's node slice, so nothing points back to a parent.
type node struct {
	id       string
	label    string
	key      string
	children []int
}

// BuildTree builds the section forest from an unordered list of records.
//
// Records are visited in numeric key order. Each distinct first component
// gets a placeholder root labeled with the record's main section title.
// Every record becomes a node attached to the node registered under its
// parent key; records whose parent key is unknown are dropped. The result
// shares no memory with the input.
func BuildTree(sections []FlatSection, opts ...Option) []TreeNode {
	o := buildOptions{previewLength: DefaultPreviewLength}
	for _, opt := range opts {
		opt(&o)
	}

	sorted := make([]FlatSection, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareKeys(sorted[i].SubsectionNumber, sorted[j].SubsectionNumber) < 0
	})

	var nodes []node
	lookup := make(map[string]int, len(sorted)*2)
	var roots []int

	for _, s := range sorted {
		main := MainKey(s.SubsectionNumber)
		if _, seen := lookup[main]; seen {
			continue
		}
		nodes = append(nodes, node{label: s.MainSection, key: main})
		lookup[main] = len(nodes) - 1
		roots = append(roots, len(nodes)-1)
	}

	// placed[i] is the node index for sorted[i], or -1 when the record lost a
	// duplicate-key conflict.
	placed := make([]int, len(sorted))
	owner := make(map[string]int, len(sorted))
	for i, s := range sorted {
		placed[i] = -1
		if prev, dup := owner[s.SubsectionNumber]; dup {
			if o.duplicates == KeepFirst {
				continue
			}
			placed[prev] = -1
		}
		nodes = append(nodes, node{
			id:    s.ID,
			label: Truncate(s.Preview, o.previewLength),
			key:   s.SubsectionNumber,
		})
		idx := len(nodes) - 1
		lookup[s.SubsectionNumber] = idx
		owner[s.SubsectionNumber] = i
		placed[i] = idx
	}

	for i, s := range sorted {
		idx := placed[i]
		if idx < 0 {
			continue
		}
		parent, ok := lookup[ParentKey(s.SubsectionNumber)]
		// An empty key is its own parent key.
		if !ok || parent == idx {
			continue
		}
		nodes[parent].children = append(nodes[parent].children, idx)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return CompareKeys(nodes[roots[i]].key, nodes[roots[j]].key) < 0
	})

	forest := make([]TreeNode, 0, len(roots))
	for _, r := range roots {
		forest = append(forest, materialize(nodes, r))
	}
	return forest
}

// materialize copies the index tree rooted at idx into a TreeNode value.
func materialize(nodes []node, idx int) TreeNode {
	n := nodes[idx]
	out := TreeNode{
		ID:            n.id,
		Label:         n.label,
		SectionNumber: n.key,
		Children:      make([]TreeNode, 0, len(n.children)),
	}
	for _, c := range n.children {
		out.Children = append(out.Children, materialize(nodes, c))
	}
	return out
}

// Truncate shortens text to max runes, appending "..." when it was cut.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max < 0 {
		max = 0
	}
	return string(runes[:max]) + "..."
}

// CompareKeys compares two dot-keys component by component as integers.
// Missing and unparseable components count as 0.
func CompareKeys(a, b string) int {
	ap := strings.Split(a, ".")
	bp := strings.Split(b, ".")
	n := len(ap)
	if len(bp) > n {
		n = len(bp)
	}
	for i := 0; i < n; i++ {
		av, bv := component(ap, i), component(bp, i)
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

func component(parts []string, i int) int64 {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(parts[i]), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParentKey drops the last component of key. Top-level keys have no parent
// and yield "".
func ParentKey(key string) string {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return ""
	}
	return key[:i]
}

// MainKey returns the first component of key.
func MainKey(key string) string {
	if i := strings.Index(key, "."); i >= 0 {
		return key[:i]
	}
	return key
}

// Duplicates returns the keys shared by more than one record, in key order.
func Duplicates(sections []FlatSection) []string {
	counts := make(map[string]int, len(sections))
	for _, s := range sections {
		counts[s.SubsectionNumber]++
	}
	var dups []string
	for key, n := range counts {
		if n > 1 {
			dups = append(dups, key)
		}
	}
	sort.Slice(dups, func(i, j int) bool {
		if c := CompareKeys(dups[i], dups[j]); c != 0 {
			return c < 0
		}
		return dups[i] < dups[j]
	})
	return dups
}
