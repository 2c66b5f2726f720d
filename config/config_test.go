package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NDAX_DOMAIN", "")
	t.Setenv("TRADING_PAIRS", "")
	t.Setenv("NDAX_REST_URL", "")
	t.Setenv("NDAX_WS_URL", "")

	cfg, err := Load("testdata/missing.env")

	require.NoError(t, err)
	assert.Equal(t, DomainMain, cfg.Domain)
	assert.Equal(t, "https://api.ndax.io:8443/AP/", cfg.RestURL)
	assert.Equal(t, "wss://api.ndax.io/WSGateway", cfg.WsURL)
	assert.Equal(t, int64(1), cfg.OMSId)
	assert.Equal(t, []string{"BTC-CAD"}, cfg.TradingPairs)
	assert.Equal(t, 5*time.Second, cfg.SnapshotRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.StreamRetryDelay)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("NDAX_DOMAIN", DomainTestnet)
	t.Setenv("NDAX_REST_URL", "")
	t.Setenv("NDAX_WS_URL", "ws://localhost:9999/WSGateway")
	t.Setenv("TRADING_PAIRS", "btc-cad, eth-cad,,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STREAM_RETRY_DELAY", "1m")
	t.Setenv("DEBUG", "true")
	t.Cleanup(func() { DebugMode = false })

	cfg, err := Load("testdata/missing.env")

	require.NoError(t, err)
	assert.Equal(t, "https://ndaxmarginstaging.cdnhop.net:8443/AP/", cfg.RestURL)
	assert.Equal(t, "ws://localhost:9999/WSGateway", cfg.WsURL)
	assert.Equal(t, []string{"BTC-CAD", "ETH-CAD"}, cfg.TradingPairs)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Minute, cfg.StreamRetryDelay)
	assert.True(t, DebugMode)
}

func TestLoad_UnknownDomain(t *testing.T) {
	t.Setenv("NDAX_DOMAIN", "ndax_moon")

	_, err := Load("testdata/missing.env")

	assert.ErrorContains(t, err, "ndax_moon")
}
