package workers

import "strings"

// acNode is one trie node of an Aho-Corasick automaton.
type acNode struct {
	children map[byte]*acNode
	fail     *acNode
	output   []int // indices into the automaton's pattern/category lists
}

func newACNode() *acNode {
	return &acNode{children: make(map[byte]*acNode)}
}

// ahoCorasick is a small multi-pattern matcher used by the worker pool to
// scan prompt text for fixed phrase sets without a per-phrase substring
// scan.
type ahoCorasick struct {
	root     *acNode
	patterns []string
	category []string
}

// newAhoCorasick builds an automaton over patterns, each labeled with a
// category used to report the dominant match group.
func newAhoCorasick(patterns []string, categories []string) *ahoCorasick {
	ac := &ahoCorasick{root: newACNode(), patterns: patterns, category: categories}
	for i, p := range patterns {
		node := ac.root
		for j := 0; j < len(p); j++ {
			c := p[j]
			next, ok := node.children[c]
			if !ok {
				next = newACNode()
				node.children[c] = next
			}
			node = next
		}
		node.output = append(node.output, i)
	}
	ac.buildFailureLinks()
	return ac
}

func (ac *ahoCorasick) buildFailureLinks() {
	queue := make([]*acNode, 0)
	for _, child := range ac.root.children {
		child.fail = ac.root
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for c, child := range node.children {
			queue = append(queue, child)
			f := node.fail
			for f != nil {
				if next, ok := f.children[c]; ok {
					child.fail = next
					break
				}
				f = f.fail
			}
			if child.fail == nil {
				child.fail = ac.root
			}
			child.output = append(child.output, child.fail.output...)
		}
	}
}

// matchResult summarizes a scan of one text: which pattern indices hit,
// and a per-category hit count.
type matchResult struct {
	hitIndices []int
	byCategory map[string]int
	total      int
}

func (ac *ahoCorasick) scan(text string) matchResult {
	low := strings.ToLower(text)
	res := matchResult{byCategory: make(map[string]int)}
	node := ac.root
	for i := 0; i < len(low); i++ {
		c := low[i]
		for node != ac.root {
			if _, ok := node.children[c]; ok {
				break
			}
			node = node.fail
		}
		if next, ok := node.children[c]; ok {
			node = next
		} else {
			node = ac.root
		}
		for _, idx := range node.output {
			res.hitIndices = append(res.hitIndices, idx)
			res.total++
			res.byCategory[ac.category[idx]]++
		}
	}
	return res
}

func (r matchResult) dominantCategoryFraction() float64 {
	if r.total == 0 {
		return 0
	}
	max := 0
	for _, c := range r.byCategory {
		if c > max {
			max = c
		}
	}
	return float64(max) / float64(r.total)
}
