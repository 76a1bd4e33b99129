// Command rlog-collector is the aggregation tier: it accepts records
// from many shippers over mTLS gRPC, batches them, and indexes the
// batches into a Quickwit-compatible REST endpoint. CLI parsing itself
// is an external collaborator - this command is thin: parse flags,
// build the TLS/gRPC/HTTP plumbing, construct the component graph,
// block on shutdown.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"rlog/internal/batch"
	"rlog/internal/buildinfo"
	"rlog/internal/indexer"
	"rlog/internal/logline"
	"rlog/internal/metrics"
	"rlog/internal/procinit"
	"rlog/internal/queue"
	"rlog/internal/rpcserver"
	"rlog/internal/rpctls"
	"rlog/internal/shippers"
	"rlog/internal/shutdown"
	"rlog/internal/statusserver"
	"rlog/internal/wire"
)

// shutdownGraceTimeout bounds the top-level join once the root token
// fires. It is longer than indexerDrainBudget so the indexer's own bound
// is always what actually cuts the drain short, not this outer net.
const shutdownGraceTimeout = 3 * time.Minute

// indexerDrainBudget is the soft drain window granted to the indexer after
// shutdown begins: unlike the shipper's egress, the collector's indexer
// is expected to finish flushing what it already has rather than abandon
// it immediately - but it must not hang forever on a wedged backend either.
const indexerDrainBudget = 2 * time.Minute

var (
	tlsCA              string
	tlsKey             string
	tlsCert            string
	grpcBindAddress    string
	quickwitRESTURL    string
	quickwitIndexID    string
	httpStatusBindAddr string
	configPath         string
	debug              bool
)

var rootCmd = &cobra.Command{
	Use:          "rlog-collector",
	Short:        "aggregate and index logs shipped by rlog-shipper agents",
	SilenceUsage: true,
	RunE:         runCollector,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&tlsCA, "tls-ca-certificate", "", "CA certificate used to verify shippers (required)")
	flags.StringVar(&tlsKey, "tls-private-key", "", "this collector's TLS private key (required)")
	flags.StringVar(&tlsCert, "tls-certificate", "", "this collector's TLS certificate (required)")
	flags.StringVar(&grpcBindAddress, "grpc-bind-address", "0.0.0.0:7878", "bind address for the shipper-facing gRPC endpoint")
	flags.StringVar(&quickwitRESTURL, "quickwit-rest-url", "http://127.0.0.1:7280", "base URL of the Quickwit-compatible indexing REST endpoint")
	flags.StringVar(&quickwitIndexID, "quickwit-index-id", "rlog", "target index ID for ingested batches")
	flags.StringVar(&httpStatusBindAddr, "http-status-bind-address", "0.0.0.0:21040", "bind address for the HTTP status server")
	flags.StringVar(&configPath, "config", "", "optional path to a config file or fragment directory")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")

	for _, name := range []string{"tls-ca-certificate", "tls-private-key", "tls-certificate"} {
		cobra.CheckErr(rootCmd.MarkFlagRequired(name))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCollector(cmd *cobra.Command, args []string) error {
	logger := procinit.Logger(debug)
	log := logrus.NewEntry(logger).WithField("version", buildinfo.Version)
	log.Info("starting rlog-collector")

	cfgStore, watchConfig, err := newCollectorConfigStore(configPath, log)
	if err != nil {
		return err
	}
	cfg := cfgStore.Load()

	creds, err := rpctls.ServerCredentials(tlsCA, tlsCert, tlsKey)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", grpcBindAddress)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	collectorMetrics := metrics.NewCollector(promReg)
	registry := shippers.NewRegistry()

	inQueue := queue.New[*logline.IndexLogEntry](cfg.InputBufferSize)
	outQueue := queue.New[[]*logline.IndexLogEntry](cfg.QuickwitOutputBufferSize)

	srv := rpcserver.New(inQueue, registry, collectorMetrics, log)
	grpcServer := grpc.NewServer(
		grpc.Creds(creds),
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: 25 * time.Second}),
	)
	wire.RegisterLogCollectorServer(grpcServer, srv)

	batcher := batch.New(cfg.QuickwitBatchSize, time.Duration(cfg.QuickwitBatchMaxInterval), inQueue, outQueue, log)
	ix := indexer.New(quickwitRESTURL, quickwitIndexID, outQueue, log)

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

	var registryWG sync.WaitGroup
	registryWG.Add(1)
	go func() {
		defer registryWG.Done()
		if err := registry.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("shipper registry reaper exited unexpectedly")
		}
	}()

	var grpcWG sync.WaitGroup
	grpcWG.Add(1)
	go func() {
		defer grpcWG.Done()
		log.WithField("address", grpcBindAddress).Info("serving gRPC")
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("grpc server exited with error")
		}
	}()

	var batcherWG sync.WaitGroup
	batcherWG.Add(1)
	go func() {
		defer batcherWG.Done()
		if err := batcher.Run(ctx); err != nil {
			log.WithError(err).Error("batcher exited with error")
		}
	}()

	indexerCtx, cancelIndexer := context.WithCancel(context.Background())
	var indexerWG sync.WaitGroup
	indexerWG.Add(1)
	go func() {
		defer indexerWG.Done()
		if err := ix.Run(indexerCtx); err != nil && indexerCtx.Err() == nil {
			log.WithError(err).Error("indexer exited with error")
		}
	}()

	statusRouter := statusserver.New(buildinfo.Version, registry, promReg, quickwitRESTURL, log)
	statusHTTP := &http.Server{Addr: httpStatusBindAddr, Handler: statusRouter}
	var statusWG sync.WaitGroup
	statusWG.Add(1)
	go func() {
		defer statusWG.Done()
		log.WithField("address", httpStatusBindAddr).Info("serving http status endpoints")
		if err := statusHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http status server exited with error")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated, draining pipeline")

	joinDone := make(chan struct{})
	go func() {
		defer close(joinDone)

		shutdownCtx, cancelShutdownHTTP := context.WithTimeout(context.Background(), 5*time.Second)
		statusHTTP.Shutdown(shutdownCtx)
		cancelShutdownHTTP()
		statusWG.Wait()

		grpcServer.GracefulStop()
		grpcWG.Wait()

		batcherWG.Wait()
		outQueue.Close()

		time.AfterFunc(indexerDrainBudget, cancelIndexer)
		indexerWG.Wait()
		cancelIndexer()

		registryWG.Wait()
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
