package rpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/ndax-bridge/domain"
	"github.com/spooky-finn/ndax-bridge/usecase"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var logger = logrus.WithField("component", "rpc")

const healthInterval = 5 * time.Second

type OrderBookReader interface {
	BestBid(pair string) (domain.PriceLevel, bool, error)
	BestAsk(pair string) (domain.PriceLevel, bool, error)
	LastUpdateTime(pair string) (time.Time, error)
	StreamState() usecase.StreamState
}

// MarketInfoAPI answers market questions straight from the exchange.
type MarketInfoAPI interface {
	LastTradedPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error)
	TradingPairs(ctx context.Context) ([]string, error)
}

// Server exposes the tracked books over HTTP and their liveness over the
// gRPC health protocol, one health service per trading pair.
type Server struct {
	provider                 string
	orderbookSnapshotUseCase *usecase.OrderBookSnapshotUseCase
	tracker                  OrderBookReader
	marketInfo               MarketInfoAPI
	validationService        *ValidationService
	health                   *health.Server
}

func NewServer(
	provider string,
	conf *ValidationServiceConfig,
	snapshotUseCase *usecase.OrderBookSnapshotUseCase,
	tracker OrderBookReader,
	marketInfo MarketInfoAPI,
) *Server {
	return &Server{
		provider:                 provider,
		orderbookSnapshotUseCase: snapshotUseCase,
		tracker:                  tracker,
		marketInfo:               marketInfo,
		validationService:        NewValidationService(conf),
		health:                   health.NewServer(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/orderbook", s.GetOrderBookSnapshot)
	mux.HandleFunc("/best", s.GetBestPrices)
	mux.HandleFunc("/prices", s.GetLastTradedPrices)
	mux.HandleFunc("/pairs", s.GetTradingPairs)
	return mux
}

// UpdateHealth marks a pair SERVING once its book holds a snapshot. The
// overall service is SERVING while the diff stream is up.
func (s *Server) UpdateHealth() {
	for _, pair := range s.validationService.config.TrackedPairs {
		status := healthpb.HealthCheckResponse_SERVING
		if _, _, err := s.tracker.BestBid(pair); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(pair, status)
	}

	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if s.tracker.StreamState() == usecase.StreamStreaming {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", overall)
}

// Serve runs the gRPC and HTTP listeners until ctx is done.
func (s *Server) Serve(ctx context.Context, grpcAddr, httpAddr string) error {
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, s.health)

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("grpc server listening at %v", lis.Addr())
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Infof("http server listening at %s", httpAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(healthInterval)
		defer ticker.Stop()

		for {
			s.UpdateHealth()
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		s.health.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
