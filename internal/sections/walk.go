package sections

// Walk visits the forest in pre-order. Returning false from fn skips the
// node's children.
func Walk(forest []TreeNode, fn func(node TreeNode, depth int) bool) {
	walk(forest, 0, fn)
}

func walk(nodes []TreeNode, depth int, fn func(TreeNode, int) bool) {
	for _, n := range nodes {
		if fn(n, depth) {
			walk(n.Children, depth+1, fn)
		}
	}
}

// Find returns the first node in pre-order whose section number matches.
func Find(forest []TreeNode, sectionNumber string) (TreeNode, bool) {
	var found TreeNode
	ok := false
	Walk(forest, func(n TreeNode, _ int) bool {
		if ok {
			return false
		}
		if n.SectionNumber == sectionNumber {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}

// FindByID returns the first real node carrying id.
func FindByID(forest []TreeNode, id string) (TreeNode, bool) {
	if id == "" {
		return TreeNode{}, false
	}
	var found TreeNode
	ok := false
	Walk(forest, func(n TreeNode, _ int) bool {
		if ok {
			return false
		}
		if n.ID == id {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}

// Count returns the number of nodes in the forest, placeholders included.
func Count(forest []TreeNode) int {
	total := 0
	Walk(forest, func(TreeNode, int) bool {
		total++
		return true
	})
	return total
}
