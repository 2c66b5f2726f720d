package ndax

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spooky-finn/ndax-bridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory(pairs map[string]int64) *InstrumentDirectory {
	d := NewInstrumentDirectory(nil)
	for pair, id := range pairs {
		d.byPair[pair] = id
		d.byID[id] = pair
	}
	return d
}

func frame(t *testing.T, msgType int, endpoint string, payload string) []byte {
	t.Helper()
	b, err := json.Marshal(Frame{MessageType: msgType, Sequence: 2, Endpoint: endpoint, Payload: payload})
	require.NoError(t, err)
	return b
}

func TestOrderBookEntry_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, e OrderBookEntry)
	}{
		{
			name: "numeric fields",
			raw:  `[2, 1, 1700000000500, 1, 50000.5, 0, 100.25, 1, 2.5, 1]`,
			check: func(t *testing.T, e OrderBookEntry) {
				assert.Equal(t, int64(2), e.MDUpdateID)
				assert.Equal(t, int64(1700000000500), e.ActionDateTime)
				assert.Equal(t, "100.25", e.Price.String())
				assert.Equal(t, "2.5", e.Quantity.String())
				assert.Equal(t, int64(1), e.ProductPairCode)
				assert.Equal(t, sideSell, e.Side)
			},
		},
		{
			name: "quoted decimals and extra fields",
			raw:  `[2, 1, 10, 0, "1", 0, "0.00000001", 1, "3", 0, "extra"]`,
			check: func(t *testing.T, e OrderBookEntry) {
				assert.Equal(t, "0.00000001", e.Price.String())
				assert.Equal(t, "3", e.Quantity.String())
			},
		},
		{
			name:    "too few fields",
			raw:     `[2, 1, 10, 0]`,
			wantErr: true,
		},
		{
			name:    "not an array",
			raw:     `{"Price": 1}`,
			wantErr: true,
		},
		{
			name:    "bad price",
			raw:     `[2, 1, 10, 0, 1, 0, "abc", 1, 3, 0]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e OrderBookEntry
			err := json.Unmarshal([]byte(tt.raw), &e)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, e)
		})
	}
}

func TestOrderBookEntry_ToPriceLevelEntry(t *testing.T) {
	var e OrderBookEntry
	require.NoError(t, json.Unmarshal([]byte(`[2, 1, 10, 2, 1, 0, 100, 1, 3, 0]`), &e))

	level, ok := e.ToPriceLevelEntry()
	require.True(t, ok)
	assert.Equal(t, domain.SideBid, level.Side)
	assert.True(t, level.Quantity.IsZero(), "delete action must carry zero quantity")
	assert.Equal(t, int64(10), level.UpdatedAt)

	e.Side = 3
	_, ok = e.ToPriceLevelEntry()
	assert.False(t, ok)
}

func TestStreamAPI_Decode(t *testing.T) {
	api := NewStreamAPI(nil, newDirectory(map[string]int64{"BTC-CAD": 1, "ETH-CAD": 3}), DefaultOMSId)

	t.Run("subscribe reply is a snapshot", func(t *testing.T) {
		msgs, err := api.decode(frame(t, frameReply, WsOrderBookChannel,
			`[[1,1,100,0,0,0,50000,1,1,0],[2,1,120,0,0,0,50100,1,2,1]]`))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.MessageSnapshot, msgs[0].Type)
		assert.Equal(t, int64(120), msgs[0].UpdateID)
		assert.Equal(t, "BTC-CAD", msgs[0].TradingPair)
		assert.Len(t, msgs[0].Entries, 2)
	})

	t.Run("update event is a diff stamped with the newest entry", func(t *testing.T) {
		msgs, err := api.decode(frame(t, frameEvent, WsOrderBookL2UpdateEvent,
			`[[3,1,300,1,0,0,50000,1,0.5,0],[4,1,250,2,0,0,50100,1,0,1]]`))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.MessageDiff, msgs[0].Type)
		assert.Equal(t, int64(300), msgs[0].UpdateID)
	})

	t.Run("batch spanning instruments is split", func(t *testing.T) {
		msgs, err := api.decode(frame(t, frameEvent, WsOrderBookL2UpdateEvent,
			`[[5,1,400,1,0,0,50000,3,0.5,0],[6,1,410,1,0,0,50000,1,0.5,0],[7,1,405,1,0,0,4000,3,1,1]]`))
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "ETH-CAD", msgs[0].TradingPair)
		assert.Equal(t, int64(405), msgs[0].UpdateID)
		assert.Len(t, msgs[0].Entries, 2)
		assert.Equal(t, "BTC-CAD", msgs[1].TradingPair)
		assert.Equal(t, int64(410), msgs[1].UpdateID)
	})

	t.Run("unknown instrument entries are skipped", func(t *testing.T) {
		msgs, err := api.decode(frame(t, frameEvent, WsOrderBookL2UpdateEvent, `[[5,1,400,1,0,0,1,99,1,0]]`))
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("empty batch yields nothing", func(t *testing.T) {
		msgs, err := api.decode(frame(t, frameEvent, WsOrderBookL2UpdateEvent, `[]`))
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("unrelated events are discarded", func(t *testing.T) {
		msgs, err := api.decode(frame(t, frameReply, WsPingRequest, `{"msg":"PONG"}`))
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("malformed payload is a protocol error", func(t *testing.T) {
		_, err := api.decode(frame(t, frameEvent, WsOrderBookL2UpdateEvent, `[[1,2]]`))
		var protocolErr *domain.ProtocolError
		assert.ErrorAs(t, err, &protocolErr)
	})

	t.Run("malformed envelope is a protocol error", func(t *testing.T) {
		_, err := api.decode([]byte(`not json`))
		var protocolErr *domain.ProtocolError
		assert.ErrorAs(t, err, &protocolErr)
	})

	t.Run("error frame is a protocol error", func(t *testing.T) {
		_, err := api.decode(frame(t, frameError, WsOrderBookChannel, `{"errormsg":"Not Authorized"}`))
		var protocolErr *domain.ProtocolError
		assert.ErrorAs(t, err, &protocolErr)
	})
}

func TestStreamConnector_SubscribeAndStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscriptions := make(chan Frame, 1)

	mux := http.NewServeMux()
	mux.Handle("/AP/", newFakeGateway())
	mux.HandleFunc("/WSGateway", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req Frame
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subscriptions <- req

		_ = conn.WriteMessage(websocket.TextMessage, frame(t, frameReply, WsOrderBookChannel,
			`[[1,1,100,0,0,0,50000,1,1,0],[2,1,120,0,0,0,50100,1,2,1]]`))
		_ = conn.WriteMessage(websocket.TextMessage, frame(t, frameEvent, WsOrderBookL2UpdateEvent,
			`[[3,1,130,2,0,0,50000,1,0,0]]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rest := NewRestClient(srv.URL+"/AP/", DefaultOMSId, nil, nil)
	directory := NewInstrumentDirectory(rest)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/WSGateway"
	connector := NewStreamConnector(wsURL, directory, nil, DefaultOMSId)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := connector.Connect(ctx)
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Subscribe(ctx, []string{"BTC-CAD"}))

	req := <-subscriptions
	assert.Equal(t, frameRequest, req.MessageType)
	assert.Equal(t, WsOrderBookChannel, req.Endpoint)
	var payload subscribeLevel2Request
	require.NoError(t, json.Unmarshal([]byte(req.Payload), &payload))
	assert.Equal(t, subscribeLevel2Request{OMSId: 1, InstrumentId: 1, Symbol: "BTCCAD", Depth: SubscribeDepth}, payload)

	snapshot, err := stream.NextMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageSnapshot, snapshot.Type)

	diff, err := stream.NextMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageDiff, diff.Type)
	assert.Equal(t, int64(130), diff.UpdateID)

	_, err = stream.NextMessage(ctx)
	assert.ErrorIs(t, err, domain.ErrStreamClosed)
}

func TestStreamAPI_SubscribeSkipsUnlistedPairs(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan Frame, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req Frame
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			received <- req
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialStreamClient(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	api := NewStreamAPI(client, newDirectory(map[string]int64{"BTC-CAD": 1, "ETH-CAD": 3}), DefaultOMSId)
	defer api.Close()

	err = api.Subscribe(ctx, []string{"DOGE-CAD", "BTC-CAD", "ETH-CAD"})
	require.NoError(t, err)

	var symbols []string
	for i := 0; i < 2; i++ {
		select {
		case req := <-received:
			var payload subscribeLevel2Request
			require.NoError(t, json.Unmarshal([]byte(req.Payload), &payload))
			symbols = append(symbols, payload.Symbol)
		case <-ctx.Done():
			t.Fatalf("only %d subscriptions received", len(symbols))
		}
	}
	assert.Equal(t, []string{"BTCCAD", "ETHCAD"}, symbols)
}
