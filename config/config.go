package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var DebugMode = false

const (
	DomainMain    = "ndax_main"
	DomainTestnet = "ndax_testnet"
)

type Endpoints struct {
	RestURL string
	WsURL   string
}

var domains = map[string]Endpoints{
	DomainMain: {
		RestURL: "https://api.ndax.io:8443/AP/",
		WsURL:   "wss://api.ndax.io/WSGateway",
	},
	DomainTestnet: {
		RestURL: "https://ndaxmarginstaging.cdnhop.net:8443/AP/",
		WsURL:   "wss://ndaxmarginstaging.cdnhop.net/WSGateway",
	},
}

type Config struct {
	Domain  string
	RestURL string
	WsURL   string
	OMSId   int64

	TradingPairs []string

	SnapshotRetryDelay time.Duration
	StreamRetryDelay   time.Duration

	MetricsAddr string
	GrpcAddr    string
	HttpAddr    string

	KafkaBrokers []string
	KafkaTopic   string

	Debug bool
}

// Load reads .env when present, then the process environment. Explicit REST
// and websocket URLs override the ones of the selected domain.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		logrus.WithField("component", "config").Debugf("no .env loaded: %s", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("NDAX_DOMAIN", DomainMain)
	v.SetDefault("NDAX_OMS_ID", 1)
	v.SetDefault("TRADING_PAIRS", "BTC-CAD")
	v.SetDefault("SNAPSHOT_RETRY_DELAY", "5s")
	v.SetDefault("STREAM_RETRY_DELAY", "30s")
	v.SetDefault("METRICS_ADDR", ":9100")
	v.SetDefault("GRPC_ADDR", ":50051")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("KAFKA_TOPIC", "ndax.orderbook")
	v.SetDefault("DEBUG", false)

	domain := v.GetString("NDAX_DOMAIN")
	endpoints, ok := domains[domain]
	if !ok {
		return nil, fmt.Errorf("unknown NDAX_DOMAIN %q", domain)
	}
	if url := v.GetString("NDAX_REST_URL"); url != "" {
		endpoints.RestURL = url
	}
	if url := v.GetString("NDAX_WS_URL"); url != "" {
		endpoints.WsURL = url
	}

	cfg := &Config{
		Domain:             domain,
		RestURL:            endpoints.RestURL,
		WsURL:              endpoints.WsURL,
		OMSId:              v.GetInt64("NDAX_OMS_ID"),
		TradingPairs:       splitList(v.GetString("TRADING_PAIRS"), strings.ToUpper),
		SnapshotRetryDelay: v.GetDuration("SNAPSHOT_RETRY_DELAY"),
		StreamRetryDelay:   v.GetDuration("STREAM_RETRY_DELAY"),
		MetricsAddr:        v.GetString("METRICS_ADDR"),
		GrpcAddr:           v.GetString("GRPC_ADDR"),
		HttpAddr:           v.GetString("HTTP_ADDR"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS"), nil),
		KafkaTopic:         v.GetString("KAFKA_TOPIC"),
		Debug:              v.GetBool("DEBUG"),
	}

	if len(cfg.TradingPairs) == 0 {
		return nil, fmt.Errorf("TRADING_PAIRS is empty")
	}
	if cfg.SnapshotRetryDelay <= 0 || cfg.StreamRetryDelay <= 0 {
		return nil, fmt.Errorf("retry delays must be positive")
	}

	DebugMode = cfg.Debug
	ConfigureLogger(cfg.Debug)

	return cfg, nil
}

func ConfigureLogger(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
}

func splitList(raw string, normalize func(string) string) []string {
	var res []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if normalize != nil {
			item = normalize(item)
		}
		res = append(res, item)
	}
	return res
}
