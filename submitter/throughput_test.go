package submitter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThroughput_ConcurrentPutInfo(t *testing.T) {
	tp := newThroughput("test1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tp.putInfo("confirmed", 1)
				tp.putInfo("retried", 2)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]uint32{"confirmed": 800, "retried": 1600}, tp.take())
	assert.Empty(t, tp.take())
}
