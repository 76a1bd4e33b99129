// Package batch aggregates IndexLogEntry records into size- or time-bounded
// batches for the indexer.
package batch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"rlog/internal/logline"
	"rlog/internal/queue"
)

// Batcher accumulates entries from in into buffer, flushing to out either
// when the buffer reaches Size or MaxWait elapses since the last flush.
type Batcher struct {
	size    int
	maxWait time.Duration
	in      *queue.Queue[*logline.IndexLogEntry]
	out     *queue.Queue[[]*logline.IndexLogEntry]
	log     *logrus.Entry
}

// New builds a Batcher flushing at size entries or maxWait, whichever comes
// first.
func New(size int, maxWait time.Duration, in *queue.Queue[*logline.IndexLogEntry], out *queue.Queue[[]*logline.IndexLogEntry], log *logrus.Entry) *Batcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Batcher{size: size, maxWait: maxWait, in: in, out: out, log: log.WithField("component", "batcher")}
}

// Run drains in until ctx is canceled (shutdown) or in closes (upstream
// done), flushing into out on every size/timer/close boundary.
// On ctx cancellation it closes in, drains whatever is already queued, and
// flushes once more before returning.
func (b *Batcher) Run(ctx context.Context) error {
	buf := make([]*logline.IndexLogEntry, 0, b.size)
	timer := time.NewTimer(b.maxWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.in.Close()
			buf = b.drainClosed(buf)
			b.flush(buf)
			return nil

		case <-timer.C:
			b.flush(buf)
			buf = buf[:0]
			timer.Reset(b.maxWait)

		case item, ok := <-b.in.Receiver():
			if !ok {
				b.flush(buf)
				return nil
			}
			buf = append(buf, item)
			if len(buf) >= b.size {
				b.flush(buf)
				buf = buf[:0]
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(b.maxWait)
			}
		}
	}
}

// drainClosed reads whatever is already buffered in b.in without blocking,
// now that it has been closed: every item queued before Close remains
// receivable until the channel empties.
func (b *Batcher) drainClosed(buf []*logline.IndexLogEntry) []*logline.IndexLogEntry {
	for {
		item, ok := b.in.Recv()
		if !ok {
			return buf
		}
		buf = append(buf, item)
	}
}

// flush ships buf as one batch, a no-op if empty. Send errors mean the
// indexer has already gone away (shutdown); they are logged, not treated
// as fatal.
func (b *Batcher) flush(buf []*logline.IndexLogEntry) {
	if len(buf) == 0 {
		return
	}
	batch := make([]*logline.IndexLogEntry, len(buf))
	copy(batch, buf)

	if err := b.out.Send(context.Background(), batch); err != nil {
		b.log.WithError(err).Error("unable to flush batch, output queue closed")
	}
}
