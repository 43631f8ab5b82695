package dice

import "fmt"

// Adjacency is the symmetric, irreflexive border relation of a map.
type Adjacency struct {
	Indexes map[Emoji]int `json:"indexes"`
	Matrix  [][]bool      `json:"matrix"`
}

// CompileAdjacency builds an adjacency matrix from a land list and border pairs.
func CompileAdjacency(lands []Emoji, borders [][2]Emoji) (Adjacency, error) {
	adj := Adjacency{
		Indexes: make(map[Emoji]int, len(lands)),
		Matrix:  make([][]bool, len(lands)),
	}
	for i, e := range lands {
		if _, dup := adj.Indexes[e]; dup {
			return Adjacency{}, fmt.Errorf("duplicate land %q", e)
		}
		adj.Indexes[e] = i
		adj.Matrix[i] = make([]bool, len(lands))
	}
	for _, b := range borders {
		i, ok := adj.Indexes[b[0]]
		if !ok {
			return Adjacency{}, fmt.Errorf("border references unknown land %q", b[0])
		}
		j, ok := adj.Indexes[b[1]]
		if !ok {
			return Adjacency{}, fmt.Errorf("border references unknown land %q", b[1])
		}
		if i == j {
			return Adjacency{}, fmt.Errorf("land %q borders itself", b[0])
		}
		adj.Matrix[i][j] = true
		adj.Matrix[j][i] = true
	}
	return adj, nil
}

// IsBorder reports whether two lands are neighbors. Unknown lands never border.
func (a Adjacency) IsBorder(from, to Emoji) bool {
	if from == to {
		return false
	}
	i, ok := a.Indexes[from]
	if !ok {
		return false
	}
	j, ok := a.Indexes[to]
	if !ok {
		return false
	}
	return a.Matrix[i][j]
}

// LandMasses partitions the lands of a color into maximal groups connected
// through same-color borders. Groups are ordered by their first land in input
// order, and lands within a group keep input order.
func LandMasses(lands []Land, adj Adjacency, color Color) [][]Emoji {
	owned := make([]Emoji, 0, len(lands))
	for _, l := range lands {
		if l.Color == color {
			owned = append(owned, l.Emoji)
		}
	}
	if len(owned) == 0 {
		return nil
	}

	parent := make([]int, len(owned))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 1; i < len(owned); i++ {
		for j := 0; j < i; j++ {
			if !adj.IsBorder(owned[i], owned[j]) {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			// keep the earliest land as root so group order follows input order
			if ri < rj {
				parent[rj] = ri
			} else {
				parent[ri] = rj
			}
		}
	}

	groupOf := make(map[int]int)
	var masses [][]Emoji
	for i, e := range owned {
		r := find(i)
		g, ok := groupOf[r]
		if !ok {
			g = len(masses)
			groupOf[r] = g
			masses = append(masses, nil)
		}
		masses[g] = append(masses[g], e)
	}
	return masses
}

// LargestConnectedCount returns the size of the color's largest land mass.
func LargestConnectedCount(lands []Land, adj Adjacency, color Color) int {
	best := 0
	for _, m := range LandMasses(lands, adj, color) {
		if len(m) > best {
			best = len(m)
		}
	}
	return best
}
