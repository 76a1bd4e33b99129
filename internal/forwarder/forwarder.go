// Package forwarder implements the per-input forwarding task: pump
// records from one ingress's queue onto the shared egress queue,
// back-pressuring onto the input side rather than dropping once a record
// has already been accepted into the pipeline.
//
// Each ingress (gelfingress, syslogingress, filetail) already performs its
// own source-variant-to-LogLine conversion at decode time and increments
// its own error counter on a failed conversion, so Pump's only
// remaining job is the queue-to-queue relay. Pump does not update any
// queue depth gauge.
package forwarder

import (
	"context"

	"github.com/sirupsen/logrus"

	"rlog/internal/queue"
	"rlog/internal/wire"
)

// Pump relays every record from in to out until in is closed and fully
// drained, or out is closed (at which point the forwarder stops pulling
// from in - "terminate on closed egress queue"). It deliberately does
// not watch ctx directly: the shutdown ordering has the owning ingress
// close in once it stops accepting new work, and the forwarder's job is
// to drain whatever that ingress already committed before the root
// token fired. ctx is accepted only for symmetry with the other
// Run-style components; it is not consulted here.
func Pump(ctx context.Context, name string, in, out *queue.Queue[*wire.LogLine], log *logrus.Entry) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "forwarder").WithField("input", name)

	for {
		v, ok := <-in.Receiver()
		if !ok {
			log.Info("input queue closed, forwarder stopping")
			return
		}
		if err := out.Send(context.Background(), v); err != nil {
			log.WithError(err).Info("egress queue closed, forwarder stopping")
			return
		}
	}
}
