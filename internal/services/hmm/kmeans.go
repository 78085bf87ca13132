package hmm

import (
	"math"
	"math/rand/v2"
)

// kmeans clusters x into k centroids using k-means++ seeding followed by
// Lloyd iterations. The result depends only on x, k and rng.
func kmeans(x [][]float64, k, maxIter int, rng *rand.Rand) [][]float64 {
	T, d := len(x), len(x[0])
	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), x[rng.IntN(T)]...))

	dist := make([]float64, T)
	for i := range dist {
		dist[i] = sqDist(x[i], centers[0])
	}
	for len(centers) < k {
		total := 0.0
		for _, v := range dist {
			total += v
		}
		next := rng.IntN(T)
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, v := range dist {
				acc += v
				if acc >= target {
					next = i
					break
				}
			}
		}
		c := append([]float64(nil), x[next]...)
		centers = append(centers, c)
		for i := range dist {
			if dd := sqDist(x[i], c); dd < dist[i] {
				dist[i] = dd
			}
		}
	}

	assign := make([]int, T)
	for i := range assign {
		assign[i] = -1
	}
	counts := make([]int, k)
	sums := newTable(k, d)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, row := range x {
			best, bestD := 0, math.Inf(1)
			for j, c := range centers {
				if dd := sqDist(row, c); dd < bestD {
					best, bestD = j, dd
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
			dist[i] = bestD
		}
		if !changed && iter > 0 {
			break
		}

		for j := range sums {
			counts[j] = 0
			for f := range sums[j] {
				sums[j][f] = 0
			}
		}
		for i, row := range x {
			j := assign[i]
			counts[j]++
			for f, v := range row {
				sums[j][f] += v
			}
		}
		for j := range centers {
			if counts[j] == 0 {
				// Re-seed an empty cluster at the point worst served by its centroid.
				far := 0
				for i := range dist {
					if dist[i] > dist[far] {
						far = i
					}
				}
				copy(centers[j], x[far])
				dist[far] = 0
				continue
			}
			for f := range centers[j] {
				centers[j][f] = sums[j][f] / float64(counts[j])
			}
		}
	}
	return centers
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
