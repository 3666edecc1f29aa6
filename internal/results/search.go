// Package results searches extracted field hierarchies by field-definition id.
//
// Both searches visit levels in the same order: every node of the current
// level is checked for a direct match before any subtree is entered, then the
// subtrees are entered in sequence order, depth first. The walk keeps its own
// stack of pending levels so a deep hierarchy returned by the remote cannot
// exhaust the goroutine stack.
package results

import "github.com/aristath/docpoller/internal/domain"

// FindFirst returns the first node whose ParamDefID matches, or nil.
func FindFirst(nodes []*domain.ResultNode, paramDefID int) *domain.ResultNode {
	var found *domain.ResultNode
	walk(nodes, func(level []*domain.ResultNode) bool {
		for _, n := range level {
			if n != nil && n.ParamDefID == paramDefID {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// FindAll returns every node whose ParamDefID matches. Matches on a level
// precede the matches found beneath that level.
func FindAll(nodes []*domain.ResultNode, paramDefID int) []*domain.ResultNode {
	matches := make([]*domain.ResultNode, 0)
	walk(nodes, func(level []*domain.ResultNode) bool {
		for _, n := range level {
			if n != nil && n.ParamDefID == paramDefID {
				matches = append(matches, n)
			}
		}
		return true
	})
	return matches
}

// Values returns the string values of nodes, in order.
func Values(nodes []*domain.ResultNode) []string {
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, n.StringValue())
	}
	return values
}

// Count returns the number of nodes in the hierarchy.
func Count(nodes []*domain.ResultNode) int {
	total := 0
	walk(nodes, func(level []*domain.ResultNode) bool {
		for _, n := range level {
			if n != nil {
				total++
			}
		}
		return true
	})
	return total
}

// walk hands each level to visit, the root level first, then the children of
// each node in order. Stops as soon as visit returns false.
func walk(root []*domain.ResultNode, visit func(level []*domain.ResultNode) bool) {
	stack := [][]*domain.ResultNode{root}
	for len(stack) > 0 {
		level := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(level) == 0 {
			continue
		}
		if !visit(level) {
			return
		}
		// Push in reverse so the first node's children are popped next.
		for i := len(level) - 1; i >= 0; i-- {
			if n := level[i]; n != nil && len(n.Children) > 0 {
				stack = append(stack, n.Children)
			}
		}
	}
}
