package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/orp/internal/config"
	"github.com/gravitas-games/orp/internal/metrics"
	"github.com/gravitas-games/orp/internal/network"
	"github.com/gravitas-games/orp/internal/protection"
)

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// newTestServer builds a server without Redis or host authentication.
func newTestServer(t *testing.T, protectionCfg *config.Protection) (*Server, *protection.Engine) {
	t.Helper()

	reg := prometheus.NewRegistry()
	session := NewSession("test", zerolog.Nop())
	engine := protection.NewEngine(protectionCfg, nil, session, metrics.NewCollector(reg), zerolog.Nop())
	metrics.RegisterStateGauges(reg, engine)

	srv, err := New(config.Default(), engine, session, reg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(srv.cancel)
	return srv, engine
}

// instantProtection activates ORP the moment a tribe goes offline.
func instantProtection() *config.Protection {
	cfg := config.DefaultProtection()
	cfg.ActivationDelaySeconds = 0
	return cfg
}

func clientMessage(t *testing.T, msgType string, payload interface{}) *network.ClientMessage {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &network.ClientMessage{Type: msgType, Payload: raw}
}

func nextMessage(t *testing.T, conn *Connection) received {
	t.Helper()

	select {
	case data := <-conn.send:
		var msg received
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message queued")
		return received{}
	}
}

func decodePayload(t *testing.T, msg received, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(msg.Payload, into))
}
