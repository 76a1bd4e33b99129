// Command rlog-shipper is the per-host agent: it accepts logs locally via
// syslog (UDP), GELF (TCP) and tailed files, normalizes them, and forwards
// them over an mTLS RPC channel to an rlog-collector. CLI parsing itself
// is an external collaborator - this command is thin: parse flags, build
// the TLS/gRPC plumbing, construct the component graph, block on shutdown.
package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rlog/internal/buildinfo"
	"rlog/internal/egress"
	"rlog/internal/filetail"
	"rlog/internal/forwarder"
	"rlog/internal/gelfingress"
	"rlog/internal/metrics"
	"rlog/internal/procinit"
	"rlog/internal/queue"
	"rlog/internal/rpctls"
	"rlog/internal/shipperconfig"
	"rlog/internal/shutdown"
	"rlog/internal/syslogingress"
	"rlog/internal/wire"
)

// shutdownGraceTimeout bounds how long the top-level join waits for every
// task group once the root token fires, so a pathologically full egress
// queue (the egress sender does not drain it on shutdown) can never hang
// the process indefinitely.
const shutdownGraceTimeout = 30 * time.Second

var (
	tlsCA             string
	tlsKey            string
	tlsCert           string
	tlsRemoteHostname string
	grpcCollectorURL  string
	syslogAddr        string
	gelfAddr          string
	configPath        string
	debug             bool
)

var rootCmd = &cobra.Command{
	Use:          "rlog-shipper",
	Short:        "forward local logs to an rlog collector",
	SilenceUsage: true,
	RunE:         runShipper,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&tlsCA, "tls-ca-certificate", "", "CA certificate used to verify the collector (required)")
	flags.StringVar(&tlsKey, "tls-private-key", "", "this shipper's TLS private key (required)")
	flags.StringVar(&tlsCert, "tls-certificate", "", "this shipper's TLS certificate (required)")
	flags.StringVar(&tlsRemoteHostname, "tls-remote-hostname", "", "override the collector certificate's expected server name")
	flags.StringVar(&grpcCollectorURL, "grpc-collector-url", "", "address of the collector's gRPC endpoint (required)")
	flags.StringVar(&syslogAddr, "syslog-udp-bind-address", "127.0.0.1:21054", "bind address for the syslog UDP ingress")
	flags.StringVar(&gelfAddr, "gelf-tcp-bind-address", "127.0.0.1:12201", "bind address for the GELF TCP ingress")
	flags.StringVar(&configPath, "config", "", "optional path to a config file or fragment directory")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")

	for _, name := range []string{"tls-ca-certificate", "tls-private-key", "tls-certificate", "grpc-collector-url"} {
		cobra.CheckErr(rootCmd.MarkFlagRequired(name))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runShipper(cmd *cobra.Command, args []string) error {
	logger := procinit.Logger(debug)
	log := logrus.NewEntry(logger).WithField("version", buildinfo.Version)
	log.Info("starting rlog-shipper")

	cfgStore, watchConfig, err := newShipperConfigStore(configPath, log)
	if err != nil {
		return err
	}
	cfg := cfgStore.Load()

	creds, err := rpctls.ClientCredentials(tlsCA, tlsCert, tlsKey, tlsRemoteHostname)
	if err != nil {
		return err
	}

	gelfQueue := queue.New[*wire.LogLine](cfg.GelfIn.Common.MaxBufferSize)
	syslogQueue := queue.New[*wire.LogLine](cfg.SyslogIn.Common.MaxBufferSize)
	filesQueue := queue.New[*wire.LogLine](shipperconfig.DefaultBufferSize)
	egressQueue := queue.New[*wire.LogLine](cfg.GrpcOut.MaxBufferSize)

	shipperMetrics := metrics.NewShipper(prometheus.NewRegistry())

	ctx, stop := shutdown.Root(log)
	defer stop()

	var configWG sync.WaitGroup
	configWG.Add(1)
	go func() {
		defer configWG.Done()
		if err := watchConfig(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("config watcher exited unexpectedly")
		}
	}()

	var ingressWG sync.WaitGroup
	ingressWG.Add(2)
	go func() {
		defer ingressWG.Done()
		if err := gelfingress.New(gelfAddr, gelfQueue, log).Run(ctx); err != nil {
			log.WithError(err).Error("gelf ingress exited with error")
		}
	}()
	go func() {
		defer ingressWG.Done()
		filters := func() []shipperconfig.SyslogExclusionFilter { return cfgStore.Load().SyslogIn.ExclusionFilters }
		if err := syslogingress.New(syslogAddr, syslogQueue, filters, log).Run(ctx); err != nil {
			log.WithError(err).Error("syslog ingress exited with error")
		}
	}()

	filesWG, stopFiles := runFileTailers(ctx, cfgStore, filesQueue, log)

	forwarderNames := []struct {
		name string
		in   *queue.Queue[*wire.LogLine]
	}{
		{"gelf_in", gelfQueue},
		{"syslog_in", syslogQueue},
		{"files_in", filesQueue},
	}
	var forwarderWG sync.WaitGroup
	forwarderWG.Add(len(forwarderNames))
	for _, f := range forwarderNames {
		f := f
		go func() {
			defer forwarderWG.Done()
			forwarder.Pump(ctx, f.name, f.in, egressQueue, log)
		}()
	}

	var egressWG sync.WaitGroup
	egressWG.Add(1)
	go func() {
		defer egressWG.Done()
		eg := egress.New(grpcCollectorURL, creds, egressQueue, shipperMetrics, log)
		if err := eg.Run(ctx); err != nil {
			log.WithError(err).Error("gRPC egress exited with error")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated, draining pipeline")

	joinDone := make(chan struct{})
	go func() {
		defer close(joinDone)

		ingressWG.Wait()
		gelfQueue.Close()
		syslogQueue.Close()

		stopFiles()
		filesWG.Wait()
		filesQueue.Close()

		forwarderWG.Wait()
		egressQueue.Close()

		egressWG.Wait()
		configWG.Wait()
	}()

	select {
	case <-joinDone:
		log.Info("shutdown complete")
	case <-time.After(shutdownGraceTimeout):
		log.Warn("shutdown grace period elapsed, exiting with pipeline still draining")
	}
	return nil
}

// runFileTailers starts one filetail.Tailer per currently-configured path
// and reconciles the running set against cfgStore on every hot reload
//. The returned stop func cancels every tailer's context and
// stops reconciling further reloads; the returned WaitGroup completes once
// every tailer goroutine has returned.
func runFileTailers(ctx context.Context, cfgStore interface {
	Load() *shipperconfig.Config
	Watch() <-chan struct{}
}, out *queue.Queue[*wire.LogLine], log *logrus.Entry) (*sync.WaitGroup, func()) {
	var wg sync.WaitGroup
	tailerCtx, cancelAll := context.WithCancel(ctx)
	cancels := map[string]context.CancelFunc{}

	lookup := func(path string) (*shipperconfig.FileParseConfig, bool) {
		fc, ok := cfgStore.Load().FilesIn[path]
		if !ok {
			return nil, false
		}
		return &fc, true
	}

	reconcile := func() {
		cfg := cfgStore.Load()
		for path, cancel := range cancels {
			if _, ok := cfg.FilesIn[path]; !ok {
				cancel()
				delete(cancels, path)
			}
		}
		for path := range cfg.FilesIn {
			if _, ok := cancels[path]; ok {
				continue
			}
			pctx, cancel := context.WithCancel(tailerCtx)
			cancels[path] = cancel
			wg.Add(1)
			go func(p string, c context.Context) {
				defer wg.Done()
				if err := filetail.New(p, lookup, out, log).Run(c); err != nil {
					log.WithError(err).WithField("file", p).Error("file tailer exited with error")
				}
			}(path, pctx)
		}
	}
	reconcile()

	go func() {
		watchCh := cfgStore.Watch()
		for {
			select {
			case <-tailerCtx.Done():
				return
			case <-watchCh:
				watchCh = cfgStore.Watch()
				reconcile()
			}
		}
	}()

	return &wg, cancelAll
}
