package geo

import (
	"math"
	"sort"

	"github.com/golang/geo/s2"
)

// s2CellLevel sets the granularity of the spatial index used for reverse
// geocoding. Level 10 cells are roughly 10km across, small enough to keep
// candidate sets tight and large enough that a cell plus its neighbors
// covers any plausible "nearest city" radius.
const s2CellLevel = 10

// maxReverseDistance is ~100km in radians on the unit sphere. Coordinates
// farther than this from every indexed place reverse-geocode to nothing.
const maxReverseDistance = 0.0157

func (ix *Index) buildCellIndex() {
	ix.cells = make(map[s2.CellID][]int)
	for i, p := range ix.places {
		ll := s2.LatLngFromDegrees(p.Latitude, p.Longitude)
		cell := s2.CellIDFromLatLng(ll).Parent(s2CellLevel)
		ix.cells[cell] = append(ix.cells[cell], i)
	}
}

// cellAndNeighbors returns the cell plus its edge and corner neighbors.
func cellAndNeighbors(cell s2.CellID) []s2.CellID {
	cells := []s2.CellID{cell}
	seen := map[s2.CellID]bool{cell: true}

	edges := cell.EdgeNeighbors()
	for i := 0; i < 4; i++ {
		if !seen[edges[i]] {
			cells = append(cells, edges[i])
			seen[edges[i]] = true
		}
	}
	for i := 0; i < 4; i++ {
		for _, corner := range edges[i].EdgeNeighbors() {
			if !seen[corner] {
				cells = append(cells, corner)
				seen[corner] = true
			}
		}
	}
	return cells
}

// ReverseNearest returns the indexed place closest to the coordinate, or
// ok=false when the coordinate is invalid or no place lies within range.
func (ix *Index) ReverseNearest(c Coordinate) (Place, bool) {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return Place{}, false
	}

	queryLL := s2.LatLngFromDegrees(c.Latitude, c.Longitude)
	queryCell := s2.CellIDFromLatLng(queryLL).Parent(s2CellLevel)

	type candidate struct {
		idx  int
		dist float64
	}
	var candidates []candidate
	for _, cell := range cellAndNeighbors(queryCell) {
		for _, idx := range ix.cells[cell] {
			p := ix.places[idx]
			dist := float64(queryLL.Distance(s2.LatLngFromDegrees(p.Latitude, p.Longitude)))
			candidates = append(candidates, candidate{idx: idx, dist: dist})
		}
	}
	if len(candidates) == 0 {
		return Place{}, false
	}

	// Distance first, then population and name so equal distances resolve
	// the same way on every call.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		pa, pb := ix.places[a.idx], ix.places[b.idx]
		if pa.Population != pb.Population {
			return pa.Population > pb.Population
		}
		return pa.Name < pb.Name
	})

	best := candidates[0]
	if best.dist > maxReverseDistance {
		return Place{}, false
	}
	return ix.places[best.idx], true
}
