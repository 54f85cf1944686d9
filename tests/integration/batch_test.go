// Package integration exercises the full batch pipeline: loader, cached
// status client, dispatch pool, and reporter working together against a
// mock status endpoint and an in-process Redis.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegistools/statusq/internal/testutil"
	"github.com/aegistools/statusq/pkg/cache"
	"github.com/aegistools/statusq/pkg/client"
	"github.com/aegistools/statusq/pkg/loader"
	"github.com/aegistools/statusq/pkg/pool"
	"github.com/aegistools/statusq/pkg/report"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	return redisClient
}

func TestFullPipeline(t *testing.T) {
	mock := testutil.NewMockStatusAPI()
	defer mock.Close()
	mock.SetResponse("10002", testutil.NewActiveResponse())
	mock.SetResponse("555", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"account_status": "suspended", "reset_time": 1800000000}`,
	})
	mock.SetResponse("1000000000000000000000000000000000", testutil.NewErrorResponse(400))

	input := strings.Join([]string{
		"10002",
		"# comment line",
		"",
		"555",
		"oops",
		"1000000000000000000000000000000000",
	}, "\n")

	items, err := loader.Load(strings.NewReader(input), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, items, 4)

	statusClient, err := client.New(client.DefaultConfig(mock.URL()))
	require.NoError(t, err)

	dispatcher, err := pool.New(statusClient, pool.Config{Workers: 3})
	require.NoError(t, err)

	final := dispatcher.Run(context.Background(), items)

	require.Equal(t, 4, len(final.Successes)+len(final.Failures))
	assert.Len(t, final.Successes, 2)
	require.Len(t, final.Failures, 2)

	// Failures keep input order: the parse error precedes the 400.
	assert.Contains(t, final.Failures[0].ErrDesc, "invalid easy id")
	assert.Equal(t, "status code=400", final.Failures[1].ErrDesc)

	var stdout bytes.Buffer
	reporter := report.New(&stdout)
	require.NoError(t, reporter.Write(final, report.Options{}))
	assert.Contains(t, stdout.String(), `"account_status": "suspended"`)
}

func TestFullPipeline_CachedSecondRun(t *testing.T) {
	mock := testutil.NewMockStatusAPI()
	defer mock.Close()
	mock.SetFallback(testutil.NewActiveResponse())

	cfg := client.DefaultConfig(mock.URL())
	cfg.Cache = cache.NewManager(setupRedis(t))
	cfg.CacheTTL = time.Minute

	statusClient, err := client.New(cfg)
	require.NoError(t, err)

	items, err := loader.Load(strings.NewReader("1\n2\n3\n"), zerolog.Nop())
	require.NoError(t, err)

	dispatcher, err := pool.New(statusClient, pool.Config{Workers: 2})
	require.NoError(t, err)

	ctx := context.Background()
	first := dispatcher.Run(ctx, items)
	require.Len(t, first.Successes, 3)
	require.Equal(t, 3, mock.GetRequestCount())

	second := dispatcher.Run(ctx, items)
	require.Len(t, second.Successes, 3)
	assert.Equal(t, 3, mock.GetRequestCount(), "second run should be served from cache")
}

func TestFullPipeline_DeterministicAcrossWorkerCounts(t *testing.T) {
	mock := testutil.NewMockStatusAPI()
	defer mock.Close()
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("%d", i)
		if i%4 == 0 {
			mock.SetResponse(id, testutil.NewErrorResponse(404))
		} else {
			mock.SetResponse(id, testutil.MockResponse{
				StatusCode: 200,
				Body:       fmt.Sprintf(`{"account_status": "active", "n": %d}`, i),
				Delay:      time.Duration(i%3) * time.Millisecond,
			})
		}
	}

	var tokens []string
	for i := 0; i < 20; i++ {
		tokens = append(tokens, fmt.Sprintf("%d", i))
	}
	items, err := loader.Load(strings.NewReader(strings.Join(tokens, "\n")), zerolog.Nop())
	require.NoError(t, err)

	var baseline []byte
	for _, workers := range []int{1, 4, 16} {
		statusClient, err := client.New(client.DefaultConfig(mock.URL()))
		require.NoError(t, err)
		dispatcher, err := pool.New(statusClient, pool.Config{Workers: workers})
		require.NoError(t, err)

		final := dispatcher.Run(context.Background(), items)

		successDoc, err := report.MarshalSuccesses(final.Successes)
		require.NoError(t, err)
		failureDoc, err := report.MarshalFailures(final.Failures)
		require.NoError(t, err)
		doc := append(append([]byte(nil), successDoc...), failureDoc...)

		if baseline == nil {
			baseline = doc

			var failures []map[string]any
			require.NoError(t, json.Unmarshal(failureDoc, &failures))
			require.Len(t, failures, 5)
			continue
		}
		assert.Equal(t, baseline, doc, "W=%d produced different documents", workers)
	}
}
