package loadtest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/syncer"
)

// LatencyStats captures the latency of one kind of request.
type LatencyStats struct {
	Min      time.Duration `json:"min"`
	Max      time.Duration `json:"max"`
	Mean     time.Duration `json:"mean"`
	P50      time.Duration `json:"p50"`
	P95      time.Duration `json:"p95"`
	P99      time.Duration `json:"p99"`
	Requests int           `json:"requests"`
	Errors   int           `json:"errors"`
}

// Result is the outcome of a load run.
type Result struct {
	Clients  int           `json:"clients"`
	Rounds   int           `json:"rounds"`
	Records  int           `json:"records_per_push"`
	Elapsed  time.Duration `json:"elapsed"`
	Push     LatencyStats  `json:"push"`
	Pull     LatencyStats  `json:"pull"`
	Failures []string      `json:"failures,omitempty"`
}

// maxFailures caps the failure messages kept in a Result.
const maxFailures = 10

type sample struct {
	push, pull time.Duration
	pushErr    error
	pullErr    error
}

// Run simulates clients shops syncing against transport at once. Each
// client performs rounds full syncs: a push of p followed by a pull.
// Pushing the same payload repeatedly is an idempotent upsert on the server,
// the same traffic a shop produces on every interval.
func Run(ctx context.Context, transport syncer.Transport, p *schema.Payload, clients, rounds int) (*Result, error) {
	if clients <= 0 || rounds <= 0 {
		return nil, fmt.Errorf("clients and rounds must be positive")
	}

	samples := make(chan sample, clients*rounds)
	var wg sync.WaitGroup

	started := time.Now()
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if ctx.Err() != nil {
					return
				}
				var s sample
				t := time.Now()
				s.pushErr = transport.Push(ctx, p)
				s.push = time.Since(t)

				t = time.Now()
				_, s.pullErr = transport.Pull(ctx)
				s.pull = time.Since(t)
				samples <- s
			}
		}()
	}
	wg.Wait()
	close(samples)

	res := &Result{Clients: clients, Rounds: rounds, Records: p.Total(), Elapsed: time.Since(started)}
	var pushes, pulls []time.Duration
	for s := range samples {
		pushes = append(pushes, s.push)
		pulls = append(pulls, s.pull)
		for _, err := range []error{s.pushErr, s.pullErr} {
			if err != nil && len(res.Failures) < maxFailures {
				res.Failures = append(res.Failures, err.Error())
			}
		}
		if s.pushErr != nil {
			res.Push.Errors++
		}
		if s.pullErr != nil {
			res.Pull.Errors++
		}
	}
	if len(pushes) == 0 {
		return nil, fmt.Errorf("no requests completed: %w", ctx.Err())
	}

	res.Push = computeLatencyStats(pushes, res.Push.Errors)
	res.Pull = computeLatencyStats(pulls, res.Pull.Errors)
	return res, nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration, errors int) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{Errors: errors}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyStats{
		Min:      sorted[0],
		Max:      sorted[len(sorted)-1],
		Mean:     sum / time.Duration(len(sorted)),
		P50:      sorted[len(sorted)*50/100],
		P95:      sorted[len(sorted)*95/100],
		P99:      sorted[len(sorted)*99/100],
		Requests: len(sorted),
		Errors:   errors,
	}
}

// Fprint writes the statistics as an aligned block.
func (s LatencyStats) Fprint(w io.Writer, title string) {
	fmt.Fprintf(w, "%s:\n", title)
	fmt.Fprintf(w, "  Requests:      %d\n", s.Requests)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
