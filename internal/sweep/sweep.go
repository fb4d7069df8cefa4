// Package sweep scans a field objective across frequency. Samples are
// independent, so they fan out across a bounded worker pool, the one
// parallel seam in an otherwise sequential pipeline.
package sweep

import (
	"context"
	"math"
	"sync"

	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/optimize"
)

// Factory builds a fresh oracle at the given angular frequency. Each
// worker gets its own oracle; oracles are not shared.
type Factory func(omega float64) (fdfd.Oracle, error)

// Point is one frequency sample of the objective.
type Point struct {
	Freq      float64 // Hz
	Objective float64
}

// Scan configures a frequency sweep around a center frequency.
type Scan struct {
	Samples int     // number of frequency samples
	Span    float64 // fractional bandwidth, e.g. 0.05
	Workers int     // concurrent solves; defaults to 1
}

// Run evaluates the objective at Samples frequencies spanning
// center·(1 ± Span/2). Results come back in frequency order.
func (s Scan) Run(ctx context.Context, centerOmega float64, src fdfd.Field, obj optimize.Objective, factory Factory) ([]Point, error) {
	n := s.Samples
	if n < 2 {
		n = 2
	}
	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}

	delta := centerOmega * s.Span
	omegas := make([]float64, n)
	for i := range omegas {
		omegas[i] = centerOmega - delta/2 + delta*float64(i)/float64(n-1)
	}

	points := make([]Point, n)
	errs := make([]error, n)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				points[i], errs[i] = evalAt(omegas[i], src, obj, factory)
			}
		}()
	}

	var ctxErr error
feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if ctxErr != nil {
		return nil, ctxErr
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return points, nil
}

func evalAt(omega float64, src fdfd.Field, obj optimize.Objective, factory Factory) (Point, error) {
	oracle, err := factory(omega)
	if err != nil {
		return Point{}, err
	}
	fs, err := oracle.SolveFields(src)
	if err != nil {
		return Point{}, err
	}
	return Point{Freq: omega / (2 * math.Pi), Objective: obj.Value(fs.Ez)}, nil
}

// FWHM estimates the full width at half maximum of the objective peak by
// counting contiguous above-half-max samples outward from the midpoint.
func FWHM(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	hm := math.Inf(-1)
	for _, p := range points {
		hm = math.Max(hm, p.Objective)
	}
	hm /= 2

	n := len(points)
	above := 0
	for i := n / 2; i < n; i++ {
		if points[i].Objective <= hm {
			break
		}
		above++
	}
	for i := n/2 - 1; i >= 0; i-- {
		if points[i].Objective <= hm {
			break
		}
		above++
	}

	df := points[1].Freq - points[0].Freq
	return float64(above) * df
}
