package hedgedmetrics

import (
	"time"

	"github.com/cristalhq/hedgedhttp"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	hedgedMetricsPublishDuration = 10 * time.Second
)

// Publish adds the number of hedged round trips to counter every 10 seconds
// until done is closed.
func Publish(s *hedgedhttp.Stats, counter prometheus.Counter, done <-chan struct{}) {
	ticker := time.NewTicker(hedgedMetricsPublishDuration)
	go func() {
		defer ticker.Stop()

		var published int64
		for {
			select {
			case <-ticker.C:
				published = flush(s, counter, published)
			case <-done:
				flush(s, counter, published)
				return
			}
		}
	}()
}

// flush adds the hedged round trips seen since the last flush and returns the
// new total.
func flush(s *hedgedhttp.Stats, counter prometheus.Counter, published int64) int64 {
	snap := s.Snapshot()
	hedged := int64(snap.ActualRoundTrips) - int64(snap.RequestedRoundTrips)
	if hedged > published {
		counter.Add(float64(hedged - published))
		return hedged
	}
	return published
}
