package evolution

import "sort"

// Family walks stored transitions in both directions from seed and returns
// every slug reached within maxDepth hops, seed first and the rest sorted.
// A negative maxDepth walks without a bound.
func Family(rows []Transition, seed string, maxDepth int) []string {
	if seed == "" {
		return nil
	}

	// Adjacency ignores direction: a family includes ancestors and branches.
	neighbours := make(map[string][]string)
	for _, r := range rows {
		if r.FromSlug == "" || r.ToSlug == "" || r.FromSlug == r.ToSlug {
			continue
		}
		neighbours[r.FromSlug] = append(neighbours[r.FromSlug], r.ToSlug)
		neighbours[r.ToSlug] = append(neighbours[r.ToSlug], r.FromSlug)
	}

	visited := map[string]bool{seed: true}
	queue := []string{seed}
	for depth := 0; (maxDepth < 0 || depth < maxDepth) && len(queue) > 0; depth++ {
		var next []string
		for _, slug := range queue {
			for _, n := range neighbours[slug] {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		queue = next
	}

	rest := make([]string, 0, len(visited)-1)
	for slug := range visited {
		if slug != seed {
			rest = append(rest, slug)
		}
	}
	sort.Strings(rest)
	return append([]string{seed}, rest...)
}
