package check

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/exomass/masschecker-go/internal/humanize"
	"github.com/exomass/masschecker-go/internal/types"
)

// ProgressFunc receives each result as it completes. It is called from
// worker goroutines, one call at a time.
type ProgressFunc func(done, total int, r types.CheckResult)

// RunBatch checks every credential, at most MaxConcurrentChecks at a
// time, rotating through the proxy list. A credential that errors does
// not stop the batch. The returned slice is ordered like the input.
func (c *Checker) RunBatch(ctx context.Context, creds []types.Credential, proxies []string, progress ProgressFunc) (types.BatchSummary, []types.CheckResult) {
	var summary types.BatchSummary
	results := make([]types.CheckResult, len(creds))
	if len(creds) == 0 {
		return summary, results
	}

	sem := semaphore.NewWeighted(int64(c.cfg.MaxConcurrentChecks))
	minDelay, maxDelay := c.cfg.DelayRange()

	var (
		mu         sync.Mutex
		done       int
		proxyIndex atomic.Uint64
		wg         sync.WaitGroup
	)

	for i, cred := range creds {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context canceled: mark the rest as errors and stop.
			for j := i; j < len(creds); j++ {
				results[j] = types.CheckResult{
					Credential: creds[j],
					Status:     types.StatusError,
					Message:    "batch canceled",
				}
			}
			break
		}

		wg.Add(1)
		go func(idx int, cred types.Credential) {
			defer wg.Done()
			defer sem.Release(1)

			proxy := ""
			if len(proxies) > 0 {
				proxy = proxies[(proxyIndex.Add(1)-1)%uint64(len(proxies))]
			}

			r := c.Check(ctx, cred, proxy)
			results[idx] = r

			mu.Lock()
			done++
			n := done
			if progress != nil {
				progress(n, len(creds), r)
			}
			mu.Unlock()

			humanize.InterCheckDelay(ctx, minDelay, maxDelay)
		}(i, cred)
	}

	wg.Wait()

	for _, r := range results {
		summary.Add(r)
	}
	log.Info().
		Int("total", summary.Total).
		Int("valid", summary.Valid).
		Int("invalid", summary.Invalid).
		Int("captcha", summary.Captcha).
		Int("twofa", summary.TwoFA).
		Int("errors", summary.Error).
		Msg("Batch complete")
	return summary, results
}
