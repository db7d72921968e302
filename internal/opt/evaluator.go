package opt

// eps guards strict-improvement tests against floating point noise.
const eps = 1e-9

// RouteDistance sums consecutive leg distances along stops.
func (in *Instance) RouteDistance(stops []int) float64 {
	total := 0.0
	for k := 0; k+1 < len(stops); k++ {
		total += in.dist[stops[k]][stops[k+1]]
	}
	return total
}

// TotalDistance sums RouteDistance over every route.
func (in *Instance) TotalDistance(s Solution) float64 {
	total := 0.0
	for _, r := range s.Routes {
		total += in.RouteDistance(r.Stops)
	}
	return total
}

// twoOptDelta is the change in route distance from reversing stops[i..j].
// Boundary edges (a,b) and (c,d) become (a,c) and (b,d); on asymmetric
// matrices the reversed interior legs are re-priced as well.
func (in *Instance) twoOptDelta(stops []int, i, j int) float64 {
	a, b, c, d := stops[i-1], stops[i], stops[j], stops[j+1]
	delta := in.dist[a][c] + in.dist[b][d] - in.dist[a][b] - in.dist[c][d]
	if !in.symmetric {
		for k := i; k < j; k++ {
			delta += in.dist[stops[k+1]][stops[k]] - in.dist[stops[k]][stops[k+1]]
		}
	}
	return delta
}

// relocateDelta is the change in total distance from moving from[p] in
// front of to[q].
func (in *Instance) relocateDelta(from []int, p int, to []int, q int) float64 {
	prev, x, next := from[p-1], from[p], from[p+1]
	removed := in.dist[prev][next] - in.dist[prev][x] - in.dist[x][next]
	u, w := to[q-1], to[q]
	inserted := in.dist[u][x] + in.dist[x][w] - in.dist[u][w]
	return removed + inserted
}
