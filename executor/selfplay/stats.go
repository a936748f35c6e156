package selfplay

import (
	"context"
	"sort"
)

// Summary aggregates the per-game shot counts of a batch.
type Summary struct {
	Games  int
	Mean   float64
	Median float64
	Min    int32
	Max    int32
}

// Summarize computes the batch summary. The median of an even-sized batch is
// the average of the two middle values.
func Summarize(counts []int32) Summary {
	if len(counts) == 0 {
		return Summary{}
	}

	sorted := make([]int32, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total int64
	for _, c := range sorted {
		total += int64(c)
	}

	n := len(sorted)
	var median float64
	if n%2 == 1 {
		median = float64(sorted[n/2])
	} else {
		median = (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
	}

	return Summary{
		Games:  n,
		Mean:   float64(total) / float64(n),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

// RunBatch plays games sequentially, one seed apart, and returns every
// per-game shot count plus the summary. The executor binary runs games in
// parallel instead; this path trades speed for reproducibility.
func RunBatch(ctx context.Context, cfg Config, games int, seed int64) ([]int32, Summary, error) {
	counts := make([]int32, 0, games)
	for i := 0; i < games; i++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, Summary{}, ctx.Err()
			default:
			}
		}

		_, _, result, err := PlayGame(ctx, 0, cfg, seed+int64(i), nil)
		if err != nil {
			return nil, Summary{}, err
		}
		counts = append(counts, result.Shots)
	}
	return counts, Summarize(counts), nil
}
