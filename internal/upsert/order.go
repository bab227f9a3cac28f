package upsert

import (
	"sort"

	"github.com/garagehub/shopload/internal/domain"
)

// orderSelfParents reorders line item rows so every in-load parent row comes
// before its children, regardless of file order. Rows whose parent reference
// points outside the load keep their relative position; the reference is
// excepted later during application. Rows trapped on a reference cycle are
// returned separately so every one of them can be excepted.
func orderSelfParents(rows []domain.StagingRow) (ordered []domain.StagingRow, cyclic []domain.StagingRow) {
	inLoad := make(map[string]int, len(rows))
	for idx, row := range rows {
		id := row.Value("externalDatalineId")
		if id == "" {
			continue
		}
		if _, dup := inLoad[id]; !dup {
			inLoad[id] = idx
		}
	}

	children := make(map[int][]int)
	indegree := make(map[int]int, len(rows))
	for idx, row := range rows {
		indegree[idx] = 0
		parent := row.Value("externalParentDatalineId")
		if parent == "" {
			continue
		}
		parentIdx, ok := inLoad[parent]
		if !ok {
			continue
		}
		if parentIdx == idx {
			// Self-referencing row, a cycle of length one.
			indegree[idx]++
			continue
		}
		children[parentIdx] = append(children[parentIdx], idx)
		indegree[idx]++
	}

	// Kahn's algorithm, seeded in file order so output stays deterministic.
	var queue []int
	for idx := range rows {
		if indegree[idx] == 0 {
			queue = append(queue, idx)
		}
	}
	sort.Ints(queue)

	ordered = make([]domain.StagingRow, 0, len(rows))
	emitted := make(map[int]bool, len(rows))
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		ordered = append(ordered, rows[idx])
		emitted[idx] = true
		for _, child := range children[idx] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	for idx, row := range rows {
		if !emitted[idx] {
			cyclic = append(cyclic, row)
		}
	}
	return ordered, cyclic
}
