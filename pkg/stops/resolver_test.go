package stops

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
)

type fakeSource struct {
	stops     []transit.Stop
	stopsErr  error
	lines     map[transit.StopKey][]string
	lineErrs  map[transit.StopKey]error
	jitter    bool
	mutex     sync.Mutex
	lineCalls int
}

func (f *fakeSource) FetchStops(ctx context.Context) ([]transit.Stop, error) {
	return f.stops, f.stopsErr
}

func (f *fakeSource) FetchStopLines(ctx context.Context, key transit.StopKey) ([]string, error) {
	f.mutex.Lock()
	f.lineCalls++
	f.mutex.Unlock()

	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	}

	if err, ok := f.lineErrs[key]; ok {
		return nil, err
	}
	return f.lines[key], nil
}

func stop(group string, post string, lat float64) transit.Stop {
	return transit.Stop{Key: transit.NewStopKey(group, post), Lat: lat, Lon: 21}
}

func TestResolveSkipsSentinelAndFailures(t *testing.T) {
	source := &fakeSource{
		stops: []transit.Stop{stop("1001", "01", 52.1), stop("1001", "02", 52.2), stop("1002", "01", 52.3)},
		lines: map[transit.StopKey][]string{
			transit.NewStopKey("1001", "01"): {"1", "520"},
		},
		lineErrs: map[transit.StopKey]error{
			transit.NewStopKey("1001", "02"): ztmapi.ErrInvalidParameters,
			transit.NewStopKey("1002", "01"): errors.New("connection reset"),
		},
	}

	resolver := &Resolver{Source: source, Workers: 2}
	resolved, report, err := resolver.Resolve(context.Background())
	require.NoError(t, err)

	require.Len(t, resolved, 1)
	assert.Equal(t, []string{"1", "520"}, resolved[transit.NewStopKey("1001", "01")].Lines)
	assert.Equal(t, 3, report.Listed)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
}

func TestResolveKeepsStopsWithoutLines(t *testing.T) {
	source := &fakeSource{
		stops: []transit.Stop{stop("1001", "01", 52.1)},
		lines: map[transit.StopKey][]string{transit.NewStopKey("1001", "01"): {}},
	}

	resolved, _, err := (&Resolver{Source: source}).Resolve(context.Background())
	require.NoError(t, err)
	assert.Contains(t, resolved, transit.NewStopKey("1001", "01"))
}

func TestResolveStopListFailureIsFatal(t *testing.T) {
	source := &fakeSource{stopsErr: errors.New("boom")}

	_, _, err := (&Resolver{Source: source}).Resolve(context.Background())
	assert.Error(t, err)
}

func TestResolveIsDeterministic(t *testing.T) {
	var listed []transit.Stop
	lines := map[transit.StopKey][]string{}
	for i := 0; i < 50; i++ {
		group := fmt.Sprintf("%d", 1000+i%10)
		post := fmt.Sprintf("%d", i%5)
		listed = append(listed, stop(group, post, float64(i)))
		lines[transit.NewStopKey(group, post)] = []string{fmt.Sprintf("%d", i%7)}
	}

	first, _, err := (&Resolver{Source: &fakeSource{stops: listed, lines: lines, jitter: true}, Workers: 8}).Resolve(context.Background())
	require.NoError(t, err)

	for run := 0; run < 3; run++ {
		again, _, err := (&Resolver{Source: &fakeSource{stops: listed, lines: lines, jitter: true}, Workers: 8}).Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// duplicates keep the last listing
	assert.Equal(t, 45.0, first[transit.NewStopKey("1005", "0")].Lat)
}

func TestResolveUsesLineCache(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	source := &fakeSource{
		stops: []transit.Stop{stop("1001", "01", 52.1)},
		lines: map[transit.StopKey][]string{transit.NewStopKey("1001", "01"): {"9"}},
	}
	resolver := &Resolver{Source: source, Cache: NewLineCache(client, time.Hour)}

	_, report, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Cached)

	resolved, report, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cached)
	assert.Equal(t, 1, source.lineCalls)
	assert.Equal(t, []string{"9"}, resolved[transit.NewStopKey("1001", "01")].Lines)
}
