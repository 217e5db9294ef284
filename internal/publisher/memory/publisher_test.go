package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRecordsEvents(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "runs", map[string]int{"records": 5})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	events := p.Events()
	require.Len(t, events, 1)
	require.Equal(t, "runs", events[0].Topic)
}

func TestPublishConcurrent(t *testing.T) {
	t.Parallel()

	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Publish(context.Background(), "runs", nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Len(t, p.Events(), 25)
}
