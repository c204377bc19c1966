package sections

// SelectFunc receives the id and section number of a clicked real node.
type SelectFunc func(id, sectionNumber string)

// Row is one visible line of a View.
type Row struct {
	Node  TreeNode
	Depth int
}

// View holds the display state of one built forest: per-node expansion,
// collapsed by default, and the active selection. A rebuilt forest gets a
// new View; nothing here is persisted.
type View struct {
	forest   []TreeNode
	expanded map[string]bool
	selected string
	onSelect SelectFunc
}

// NewView returns a View over forest with every node collapsed.
func NewView(forest []TreeNode, onSelect SelectFunc) *View {
	return &View{
		forest:   forest,
		expanded: make(map[string]bool),
		onSelect: onSelect,
	}
}

// Forest returns the forest the view was built over.
func (v *View) Forest() []TreeNode {
	return v.forest
}

// Expanded reports whether the node with the given section number is expanded.
func (v *View) Expanded(sectionNumber string) bool {
	return v.expanded[sectionNumber]
}

// Toggle flips the expansion of a node.
func (v *View) Toggle(sectionNumber string) {
	v.expanded[sectionNumber] = !v.expanded[sectionNumber]
}

// ExpandAll expands every node that has children.
func (v *View) ExpandAll() {
	Walk(v.forest, func(n TreeNode, _ int) bool {
		if len(n.Children) > 0 {
			v.expanded[n.SectionNumber] = true
		}
		return true
	})
}

// CollapseAll resets every node to collapsed.
func (v *View) CollapseAll() {
	v.expanded = make(map[string]bool)
}

// ExpandPath expands the ancestors of the node with the given section
// number so that it becomes visible. It reports false if no such node exists.
func (v *View) ExpandPath(sectionNumber string) bool {
	var path []string
	var visit func(nodes []TreeNode) bool
	visit = func(nodes []TreeNode) bool {
		for _, n := range nodes {
			if n.SectionNumber == sectionNumber {
				return true
			}
			path = append(path, n.SectionNumber)
			if visit(n.Children) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if !visit(v.forest) {
		return false
	}
	for _, key := range path {
		v.expanded[key] = true
	}
	return true
}

// Click applies a click on node: nodes with children toggle, real nodes
// become the selection and are reported to the select callback.
// Placeholders are never selected.
func (v *View) Click(node TreeNode) {
	if len(node.Children) > 0 {
		v.Toggle(node.SectionNumber)
	}
	if node.ID == "" {
		return
	}
	v.selected = node.ID
	if v.onSelect != nil {
		v.onSelect(node.ID, node.SectionNumber)
	}
}

// Select marks id as the active selection without a click.
func (v *View) Select(id string) {
	v.selected = id
}

// Selected returns the active id.
func (v *View) Selected() string {
	return v.selected
}

// IsSelected reports whether node is the active selection.
func (v *View) IsSelected(node TreeNode) bool {
	return v.selected != "" && node.ID == v.selected
}

// Visible flattens the forest into the rows a display would show.
func (v *View) Visible() []Row {
	var rows []Row
	Walk(v.forest, func(n TreeNode, depth int) bool {
		rows = append(rows, Row{Node: n, Depth: depth})
		return v.expanded[n.SectionNumber]
	})
	return rows
}
