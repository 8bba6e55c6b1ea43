package submitter

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// throughput counts phase results between periodic log lines.
type throughput struct {
	domain   string
	outcomes map[string]uint32
	mu       sync.Mutex
}

func newThroughput(domain string) *throughput {
	return &throughput{domain: domain, outcomes: make(map[string]uint32)}
}

func (t *throughput) putInfo(key string, count uint32) {
	t.mu.Lock()
	t.outcomes[key] = t.outcomes[key] + count
	t.mu.Unlock()
}

// take returns the counts so far and starts a new window.
func (t *throughput) take() map[string]uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.outcomes
	t.outcomes = make(map[string]uint32)
	return out
}

func (t *throughput) presentThroughput(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if outcomes := t.take(); len(outcomes) > 0 {
			log.Info(fmt.Sprintf("[Submitter stats %s] %v", t.domain, outcomes))
		}
	}
}
