package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

type loadOptions struct {
	identities  int
	concurrency int
	ops         int
	tokenRate   float64
	timeout     time.Duration
}

type loadResult struct {
	stats      phaseStats
	outcomes   map[string]int64
	violations int
	snapshot   goGuard.MetricsSnapshot
}

// runLoad issues opts.ops attempts and checks that no identity was allowed
// more than the lock threshold.
func runLoad(ctx context.Context, g *goGuard.Guard, opts loadOptions) loadResult {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
		allowed   = make([]atomic.Int64, opts.identities)
		outcomes  [4]atomic.Int64
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops || ctx.Err() != nil {
					return
				}
				idx := r.Intn(opts.identities)
				a := goGuard.Attempt{Identity: "10.0." + strconv.Itoa(idx/256) + "." + strconv.Itoa(idx%256)}
				if r.Float64() < opts.tokenRate {
					a.ChallengeToken = "tok"
				}

				t0 := time.Now()
				d, err := g.Check(ctx, a)
				elapsed := time.Since(t0)

				switch {
				case err == nil && d.Allowed():
					allowed[idx].Add(1)
					outcomes[0].Add(1)
				case errors.Is(err, goGuard.ErrChallengeRequired):
					outcomes[1].Add(1)
				case errors.Is(err, goGuard.ErrRateLimited):
					outcomes[2].Add(1)
				default:
					outcomes[3].Add(1)
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)

	lock := int64(g.Config().Thresholds.Lock)
	violations := 0
	for i := range allowed {
		if allowed[i].Load() > lock {
			violations++
		}
	}

	return loadResult{
		stats: computeStats(total, latencies, failures),
		outcomes: map[string]int64{
			"allow":              outcomes[0].Load(),
			"challenge_required": outcomes[1].Load(),
			"denied":             outcomes[2].Load(),
			"error":              outcomes[3].Load(),
		},
		violations: violations,
		snapshot:   g.MetricsSnapshot(),
	}
}

func printLoadResult(w io.Writer, res loadResult, lock int) {
	fmt.Fprintln(w, "---- results ----")
	printStats(w, "check", res.stats)
	for _, k := range []string{"allow", "challenge_required", "denied", "error"} {
		fmt.Fprintf(w, "%-20s %d\n", k, res.outcomes[k])
	}
	fmt.Fprintf(w, "tracked identities   %d\n", res.snapshot.TrackedIdentities)
	fmt.Fprintf(w, "lock threshold       %d (violations: %d)\n", lock, res.violations)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
