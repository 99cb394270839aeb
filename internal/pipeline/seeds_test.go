package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLoader struct {
	mu       sync.Mutex
	loaded   map[string]string
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     string
}

func (l *recordingLoader) LoadCSV(ctx context.Context, table, path string) error {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if table == l.fail {
		return errors.New("no such file")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded == nil {
		l.loaded = make(map[string]string)
	}
	l.loaded[table] = path
	return ctx.Err()
}

func TestLoadSeeds(t *testing.T) {
	seeds := map[string]string{
		"a": "a.csv", "b": "b.csv", "c": "c.csv", "d": "d.csv", "e": "e.csv",
	}
	loader := &recordingLoader{}

	require.NoError(t, LoadSeeds(context.Background(), loader, seeds, 2))
	assert.Equal(t, seeds, loader.loaded)
	assert.LessOrEqual(t, loader.peak.Load(), int32(2))
}

func TestLoadSeeds_Error(t *testing.T) {
	loader := &recordingLoader{fail: "b"}

	err := LoadSeeds(context.Background(), loader, map[string]string{"a": "a.csv", "b": "b.csv"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed b")
}

func TestLoadSeeds_Empty(t *testing.T) {
	assert.NoError(t, LoadSeeds(context.Background(), &recordingLoader{}, nil, 1))
}
