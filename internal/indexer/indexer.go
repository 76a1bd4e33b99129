// Package indexer ships completed batches of index entries to the indexing
// backend over HTTP, grounded on rlog-collector/src/index.rs's
// launch_index_loop.
package indexer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"rlog/internal/logline"
	"rlog/internal/queue"
)

// ConnectTimeout bounds establishing the TCP connection to the indexing
// backend.
const ConnectTimeout = 5 * time.Second

// rateLimitedRetryDelay is how long the loop sleeps before retrying a batch
// that the backend rejected with 429 Too Many Requests.
const rateLimitedRetryDelay = 5 * time.Second

// errorRetryDelay is how long the loop sleeps before retrying a batch after
// any other rejection or transport failure.
const errorRetryDelay = time.Second

// payloadTooLargeSubstring is matched against a 400 response body to decide
// whether the batch should be split rather than just retried.
const payloadTooLargeSubstring = "The request payload is too large"

// batchState is the Batch = None | Single | Split(to_send, remaining) state
// machine from the original. toSend/sourceEntries is nil in the "None"
// state; remaining is only ever populated right after a split, and is
// drained back into toSend before anything new is pulled off in, so at
// most one split is ever outstanding at a time.
type batchState struct {
	toSend        []byte
	toSendCount   int
	sourceEntries []*logline.IndexLogEntry
	remaining     []*logline.IndexLogEntry
}

func (s *batchState) idle() bool { return s.toSend == nil }

func (s *batchState) clear() {
	s.toSend = nil
	s.toSendCount = 0
	s.sourceEntries = nil
}

// Indexer posts batches of IndexLogEntry to a Quickwit-shaped ingest
// endpoint ({base}/api/v1/{index_id}/ingest).
type Indexer struct {
	endpoint string
	client   *http.Client
	in       *queue.Queue[[]*logline.IndexLogEntry]
	log      *logrus.Entry

	processedTotal int64
	errorTotal     int64
}

// New builds an Indexer posting to baseURL/api/v1/indexID/ingest.
func New(baseURL, indexID string, in *queue.Queue[[]*logline.IndexLogEntry], log *logrus.Entry) *Indexer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	endpoint := fmt.Sprintf("%s/api/v1/%s/ingest", strings.TrimRight(baseURL, "/"), indexID)
	return &Indexer{
		endpoint: endpoint,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: ConnectTimeout}).DialContext,
			},
		},
		in:  in,
		log: log.WithField("component", "index"),
	}
}

// Run drains batches from in and ships them until in closes (a clean
// shutdown) or ctx is canceled.
func (ix *Indexer) Run(ctx context.Context) error {
	var state batchState

	for {
		if state.idle() {
			if len(state.remaining) > 0 {
				next := state.remaining
				state.remaining = nil
				ix.loadBatch(&state, next)
			} else {
				entries, ok := ix.recv(ctx)
				if !ok {
					return nil
				}
				if len(entries) == 0 {
					continue
				}
				ix.loadBatch(&state, entries)
			}
		}

		if state.idle() {
			// A split discarded an irreducible singleton; go idle again.
			continue
		}

		wait := ix.post(ctx, &state)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
		}
	}
}

func (ix *Indexer) recv(ctx context.Context) ([]*logline.IndexLogEntry, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case v, ok := <-ix.in.Receiver():
		return v, ok
	}
}

func (ix *Indexer) loadBatch(state *batchState, entries []*logline.IndexLogEntry) {
	body, err := logline.NDJSON(entries)
	if err != nil {
		ix.log.WithError(err).Error("unable to marshal batch, dropping it")
		ix.errorTotal += int64(len(entries))
		return
	}
	state.toSend = body
	state.toSendCount = len(entries)
	state.sourceEntries = entries
}

// post attempts the current batch once, returning how long the caller
// should wait before the loop's next iteration (0 meaning "go again
// immediately, state has already moved on").
func (ix *Indexer) post(ctx context.Context, state *batchState) time.Duration {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ix.endpoint, bytes.NewReader(state.toSend))
	if err != nil {
		ix.log.WithError(err).Error("unable to build ingest request")
		return errorRetryDelay
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := ix.client.Do(req)
	if err != nil {
		ix.log.WithError(err).Error("unable to reach indexing backend, will retry")
		return errorRetryDelay
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		ix.processedTotal += int64(state.toSendCount)
		state.clear()
		return 0

	case resp.StatusCode == http.StatusTooManyRequests:
		ix.log.Warn("indexing backend is rate limiting us, will retry")
		return rateLimitedRetryDelay

	case resp.StatusCode == http.StatusBadRequest && strings.Contains(string(respBody), payloadTooLargeSubstring):
		ix.split(state)
		return 0

	default:
		ix.log.WithField("status", resp.StatusCode).Error("indexing backend rejected batch, will retry")
		return errorRetryDelay
	}
}

// split halves the batch that just failed as "payload too large": an
// irreducible single-entry batch is discarded rather than retried
// forever, since the backend will never accept it. Otherwise
// the first half replaces toSend and the second half is held in remaining
// for the next loop iteration, preserving the at-most-one-outstanding-split
// invariant.
func (ix *Indexer) split(state *batchState) {
	entries := state.sourceEntries
	if len(entries) <= 1 {
		log := ix.log.WithField("status", http.StatusBadRequest).WithField("upstream_error", payloadTooLargeSubstring)
		for _, e := range entries {
			msg := e.Message
			if len(msg) > 256 {
				msg = msg[:256] + "...(truncated)"
			}
			log = log.WithField("hostname", e.Hostname).WithField("service_name", e.ServiceName).WithField("message", msg)
		}
		log.Error("discarding single entry the backend refuses as too large")
		ix.errorTotal += int64(len(entries))
		state.clear()
		return
	}
	mid := len(entries) / 2
	first, second := entries[:mid], entries[mid:]
	state.clear()
	ix.loadBatch(state, first)
	state.remaining = second
}

// ProcessedTotal reports the number of entries successfully ingested.
func (ix *Indexer) ProcessedTotal() int64 { return ix.processedTotal }

// ErrorTotal reports the number of entries dropped as unrecoverable: every
// entry of a batch that failed to marshal, and each single entry the
// backend still refused as too large after splitting.
func (ix *Indexer) ErrorTotal() int64 { return ix.errorTotal }
