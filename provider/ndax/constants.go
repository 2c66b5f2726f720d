package ndax

import "time"

const ExchangeName = "ndax"

const DefaultOMSId int64 = 1

// REST endpoints, relative to the AP base url.
const (
	MarketsURL         = "GetInstruments"
	OrderBookURL       = "GetL2Snapshot"
	LastTradedPriceURL = "GetLevel1"
)

// Websocket endpoint and event names.
const (
	WsOrderBookChannel       = "SubscribeLevel2"
	WsOrderBookL2UpdateEvent = "Level2UpdateEvent"
	WsPingRequest            = "Ping"
)

const (
	SnapshotDepth  = 999999
	SubscribeDepth = 99999
)

const (
	MessageTimeout = 30 * time.Second
	PingTimeout    = 10 * time.Second
	writeTimeout   = 10 * time.Second
)

// Rate limit groups shared by several endpoints.
const (
	HttpEndpointsLimit = "AllHTTP"
	WsEndpointsLimit   = "AllWs"
)

const (
	httpLimit = 600
	wsLimit   = 500
)
