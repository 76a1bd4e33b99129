package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"

	"rlog/internal/logline"
	"rlog/internal/queue"
)

func entries(n int) []*logline.IndexLogEntry {
	out := make([]*logline.IndexLogEntry, n)
	for i := range out {
		out[i] = &logline.IndexLogEntry{Message: fmt.Sprintf("line %d", i), Hostname: "h"}
	}
	return out
}

func newTestIndexer(t *testing.T, srv *httptest.Server) (*Indexer, *queue.Queue[[]*logline.IndexLogEntry]) {
	t.Helper()
	in := queue.New[[]*logline.IndexLogEntry](10)
	ix := New(srv.URL, "rlog", in, logrus.NewEntry(logrus.StandardLogger()))
	return ix, in
}

func TestRunPostsBatchAndExitsOnClose(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ix, in := newTestIndexer(t, srv)
	in.TrySend(entries(3))
	in.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NilError(t, ix.Run(ctx))
	assert.Equal(t, ix.ProcessedTotal(), int64(3))
	assert.Equal(t, atomic.LoadInt32(&requests), int32(1))
}

func TestRunRetriesOnceAfterRateLimitThenSucceeds(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ix, in := newTestIndexer(t, srv)
	// speed the test up by shrinking the rate-limit backoff isn't exposed,
	// so just budget enough wall-clock for one 5s sleep.
	in.TrySend(entries(2))
	in.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	assert.NilError(t, ix.Run(ctx))
	assert.Equal(t, ix.ProcessedTotal(), int64(2))
	assert.Equal(t, atomic.LoadInt32(&requests), int32(2))
}

func TestRunSplitsOnPayloadTooLarge(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("The request payload is too large"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ix, in := newTestIndexer(t, srv)
	in.TrySend(entries(4))
	in.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NilError(t, ix.Run(ctx))
	// first request (4 entries) rejected and split into 2+2, both of
	// which succeed on subsequent requests.
	assert.Equal(t, ix.ProcessedTotal(), int64(4))
	assert.Equal(t, atomic.LoadInt32(&requests), int32(3))
}

func TestRunDiscardsIrreducibleSingleton(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("The request payload is too large"))
	}))
	defer srv.Close()

	ix, in := newTestIndexer(t, srv)
	in.TrySend(entries(1))
	in.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NilError(t, ix.Run(ctx))
	assert.Equal(t, ix.ProcessedTotal(), int64(0))
	assert.Equal(t, ix.ErrorTotal(), int64(1))
	assert.Equal(t, atomic.LoadInt32(&requests), int32(1))
}

func TestRunRetriesOnTransportError(t *testing.T) {
	ix, in := newTestIndexer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	ix.endpoint = "http://127.0.0.1:1/api/v1/rlog/ingest" // nothing listening

	in.TrySend(entries(1))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	// never succeeds within the budget; just confirm it doesn't panic or
	// return early, and that it exits cleanly when ctx is done.
	err := ix.Run(ctx)
	assert.NilError(t, err)
	assert.Equal(t, ix.ProcessedTotal(), int64(0))
}
