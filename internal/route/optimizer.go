// Package route sequences waypoints into a near-optimal visiting
// order. This is a heuristic solver (nearest-neighbor construction
// plus 2-opt local search), not exact TSP, so the waypoint count is
// bounded.
package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/fleet-tracking/internal/models"
	"github.com/example/fleet-tracking/internal/observability"
)

// DefaultMaxWaypoints bounds the solver input.
const DefaultMaxWaypoints = 25

var ErrTooManyWaypoints = errors.New("too many waypoints")

// MatrixSource supplies the pairwise distances the solver works on.
type MatrixSource interface {
	Calculate(ctx context.Context, req models.MatrixRequest) (models.MatrixResult, error)
}

type Optimizer struct {
	Matrix       MatrixSource
	MaxWaypoints int
}

func NewOptimizer(m MatrixSource) *Optimizer {
	return &Optimizer{Matrix: m, MaxWaypoints: DefaultMaxWaypoints}
}

// Optimize builds a square matrix over start+waypoints, constructs a
// nearest-neighbor tour from the start and improves it with 2-opt.
// Given an identical distance matrix the result is deterministic: the
// edge scan runs in a fixed order, swaps apply on strict improvement
// only, and there are no randomized restarts. The returned sequence
// indexes the request waypoints; the start point is excluded but its
// outgoing edge counts toward the totals.
func (o *Optimizer) Optimize(ctx context.Context, req models.RouteRequest) (models.RoutePlan, error) {
	maxWp := o.MaxWaypoints
	if maxWp <= 0 {
		maxWp = DefaultMaxWaypoints
	}
	if len(req.Waypoints) > maxWp {
		return models.RoutePlan{}, fmt.Errorf("%w: %d > %d", ErrTooManyWaypoints, len(req.Waypoints), maxWp)
	}
	observability.RoutesOptimizedTotal.Inc()

	if len(req.Waypoints) == 0 {
		return models.RoutePlan{Sequence: []int{}}, nil
	}

	points := append([]models.Coord{req.Start}, req.Waypoints...)
	mres, err := o.Matrix.Calculate(ctx, models.MatrixRequest{
		Origins:      points,
		Destinations: points,
		Mode:         req.Mode,
	})
	if err != nil {
		return models.RoutePlan{}, err
	}
	cells := mres.Cells

	tour := nearestNeighborTour(cells)
	tour, iters := twoOpt(tour, cells, len(req.Waypoints))

	plan := models.RoutePlan{
		Sequence:   make([]int, 0, len(req.Waypoints)),
		Iterations: iters,
	}
	for _, idx := range tour[1:] {
		plan.Sequence = append(plan.Sequence, idx-1)
	}
	for k := 0; k+1 < len(tour); k++ {
		cell := cells[tour[k]][tour[k+1]]
		plan.TotalDistance += cell.DistanceMeters
		plan.TotalDuration += cell.DurationSeconds
	}
	return plan, nil
}

// nearestNeighborTour greedily extends the tour from index 0 (the
// start point) to the closest unvisited point; ties keep the lowest
// index.
func nearestNeighborTour(cells [][]models.MatrixCell) []int {
	n := len(cells)
	visited := make([]bool, n)
	tour := make([]int, 0, n)
	tour = append(tour, 0)
	visited[0] = true
	current := 0
	for len(tour) < n {
		next := -1
		best := 0.0
		for cand := 1; cand < n; cand++ {
			if visited[cand] {
				continue
			}
			d := cells[current][cand].DistanceMeters
			if next == -1 || d < best {
				next = cand
				best = d
			}
		}
		tour = append(tour, next)
		visited[next] = true
		current = next
	}
	return tour
}

// twoOpt improves the open tour by reversing segments. Scan order is
// fixed (i ascending, then j), a reversal is applied only on strict
// improvement, and the pass count is capped at the waypoint count.
// Returns the improved tour and the number of applied reversals.
func twoOpt(tour []int, cells [][]models.MatrixCell, maxPasses int) ([]int, int) {
	const epsilon = 1e-9
	iters := 0
	if len(tour) < 4 {
		// nothing to reverse: position 0 is the fixed start
		if len(tour) == 3 {
			// one candidate swap: visiting order of the two waypoints
			swapped := []int{tour[0], tour[2], tour[1]}
			if pathDistance(swapped, cells)+epsilon < pathDistance(tour, cells) {
				return swapped, 1
			}
		}
		return tour, 0
	}
	for pass := 0; pass < maxPasses; pass++ {
		improved := false
		for i := 1; i < len(tour)-1; i++ {
			for j := i + 1; j < len(tour); j++ {
				cand := make([]int, len(tour))
				copy(cand, tour)
				reverse(cand[i : j+1])
				if pathDistance(cand, cells)+epsilon < pathDistance(tour, cells) {
					tour = cand
					iters++
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return tour, iters
}

func pathDistance(tour []int, cells [][]models.MatrixCell) float64 {
	total := 0.0
	for k := 0; k+1 < len(tour); k++ {
		total += cells[tour[k]][tour[k+1]].DistanceMeters
	}
	return total
}

func reverse(s []int) {
	for a, b := 0, len(s)-1; a < b; a, b = a+1, b-1 {
		s[a], s[b] = s[b], s[a]
	}
}
