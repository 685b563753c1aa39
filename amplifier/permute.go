package amplifier

// Permutations returns every ordered selection of k distinct elements of
// values, in the lexicographic order of their positions in values. With
// k == len(values) that is all len(values)! orderings.
func Permutations(values []int64, k int) [][]int64 {
	if k < 0 || k > len(values) {
		return nil
	}
	var out [][]int64
	used := make([]bool, len(values))
	cur := make([]int64, 0, k)

	var walk func()
	walk = func() {
		if len(cur) == k {
			perm := make([]int64, k)
			copy(perm, cur)
			out = append(out, perm)
			return
		}
		for i, v := range values {
			if used[i] {
				continue
			}
			used[i] = true
			cur = append(cur, v)
			walk()
			cur = cur[:len(cur)-1]
			used[i] = false
		}
	}
	walk()
	return out
}

// validPhases reports whether phases has n pairwise distinct values.
func validPhases(phases []int64, n int) bool {
	if len(phases) != n {
		return false
	}
	seen := make(map[int64]struct{}, n)
	for _, p := range phases {
		if _, dup := seen[p]; dup {
			return false
		}
		seen[p] = struct{}{}
	}
	return true
}
