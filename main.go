package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/ndax-bridge/config"
	"github.com/spooky-finn/ndax-bridge/domain"
	kafkaclient "github.com/spooky-finn/ndax-bridge/infrastructure/kafka"
	promclient "github.com/spooky-finn/ndax-bridge/infrastructure/prometheus"
	"github.com/spooky-finn/ndax-bridge/provider/ndax"
	"github.com/spooky-finn/ndax-bridge/rpc"
	"github.com/spooky-finn/ndax-bridge/usecase"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logrus.Errorf("bridge stopped: %s", err)
		os.Exit(1)
	}
	logrus.Info("bridge stopped")
}

// run wires the bridge and blocks until it stops. Resources it opens are
// released on return.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ndax.NewRateLimiter(ndax.RateLimits)
	rest := ndax.NewRestClient(cfg.RestURL, cfg.OMSId, limiter, nil)
	directory := ndax.NewInstrumentDirectory(rest)
	syncAPI := ndax.NewSyncAPI(rest, directory)
	connector := ndax.NewStreamConnector(cfg.WsURL, directory, limiter, cfg.OMSId)

	storage := domain.NewOrderBookStorage(ndax.ExchangeName)
	tracker := usecase.NewOrderBookTracker(cfg.TradingPairs, syncAPI, connector, storage).
		WithRetryDelays(cfg.SnapshotRetryDelay, cfg.StreamRetryDelay)

	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafkaclient.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		tracker.WithPublisher(publisher)
	}

	server := rpc.NewServer(
		ndax.ExchangeName,
		&rpc.ValidationServiceConfig{
			AvailableProviders: []string{ndax.ExchangeName},
			TrackedPairs:       tracker.TradingPairs(),
		},
		usecase.NewOrderBookSnapshotUseCase(storage, syncAPI),
		tracker,
		syncAPI,
	)

	go func() {
		if err := promclient.StartPromClientServer(cfg.MetricsAddr); err != nil {
			logrus.Errorf("prometheus server stopped: %s", err)
		}
	}()

	logrus.WithFields(logrus.Fields{
		"domain": cfg.Domain,
		"pairs":  cfg.TradingPairs,
	}).Info("starting ndax order book bridge")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tracker.Run(ctx) })
	g.Go(func() error { return server.Serve(ctx, cfg.GrpcAddr, cfg.HttpAddr) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
