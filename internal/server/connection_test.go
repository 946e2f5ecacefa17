package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/orp/internal/config"
	"github.com/gravitas-games/orp/internal/network"
	"github.com/gravitas-games/orp/internal/protection"
)

func TestPlayerConnectedAnnounces(t *testing.T) {
	srv, engine := newTestServer(t, config.DefaultProtection())
	conn := NewConnection(nil, srv, "host-a")

	conn.handleMessage(clientMessage(t, network.MsgTypePlayerConnected, network.PlayerConnectedPayload{
		PlayerID: 76561198000000001,
		TribeID:  20,
		Name:     "Ava",
	}))

	msg := nextMessage(t, conn)
	require.Equal(t, network.MsgTypeNotify, msg.Type)
	var notify network.NotifyPayload
	decodePayload(t, msg, &notify)
	assert.Equal(t, uint64(76561198000000001), notify.PlayerID)
	assert.Equal(t, protection.ConnectNotice, notify.Message)

	player, ok := srv.session.GetPlayer(76561198000000001)
	require.True(t, ok)
	assert.Equal(t, "host-a", player.HostID)
	assert.True(t, engine.IsNewbieProtected(76561198000000001, time.Now()))
}

func TestDamageRequestCompoundsPasses(t *testing.T) {
	srv, _ := newTestServer(t, instantProtection())
	conn := NewConnection(nil, srv, "host-a")

	conn.handleMessage(clientMessage(t, network.MsgTypePlayerDisconnected, network.PlayerDisconnectedPayload{PlayerID: 1, TribeID: 20}))

	cases := []struct {
		name   string
		victim network.TargetPayload
		want   float64
	}{
		{"dino", network.TargetPayload{TribeID: 20, Kind: "dino", Name: "Rex_Character_BP_C"}, 12.5},
		{"turret by name", network.TargetPayload{TribeID: 20, Kind: "structure", Name: "StructureTurretBaseBP_C"}, 2.5},
		{"explicit structure", network.TargetPayload{TribeID: 20, Category: "structure"}, 2.5},
		{"unprotected tribe", network.TargetPayload{TribeID: 21, Kind: "dino"}, 100},
		{"tribeless", network.TargetPayload{Kind: "structure"}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			victim := tc.victim
			conn.handleMessage(clientMessage(t, network.MsgTypeDamage, network.DamagePayload{
				RequestID: tc.name,
				Damage:    100,
				Victim:    &victim,
				Attacker:  &network.AttackerPayload{PlayerID: 7, TribeID: 30},
			}))

			msg := nextMessage(t, conn)
			require.Equal(t, network.MsgTypeDamageResult, msg.Type)
			var result network.DamageResultPayload
			decodePayload(t, msg, &result)
			assert.Equal(t, tc.name, result.RequestID)
			assert.InDelta(t, tc.want, result.Damage, 1e-9)
		})
	}
}

func TestDamageRequestNewbieAttacker(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultProtection())
	conn := NewConnection(nil, srv, "host-a")

	conn.handleMessage(clientMessage(t, network.MsgTypePlayerConnected, network.PlayerConnectedPayload{PlayerID: 7, TribeID: 30}))
	nextMessage(t, conn) // connect notice

	conn.handleMessage(clientMessage(t, network.MsgTypeDamage, network.DamagePayload{
		RequestID: "r1",
		Damage:    80,
		Victim:    &network.TargetPayload{TribeID: 20, Kind: "structure", Name: "Wall"},
		Attacker:  &network.AttackerPayload{PlayerID: 7, TribeID: 30},
	}))
	var result network.DamageResultPayload
	decodePayload(t, nextMessage(t, conn), &result)
	assert.Equal(t, 0.0, result.Damage)

	// no attacker controller, e.g. environmental damage
	conn.handleMessage(clientMessage(t, network.MsgTypeDamage, network.DamagePayload{
		RequestID: "r2",
		Damage:    80,
		Victim:    &network.TargetPayload{TribeID: 20, Kind: "structure", Name: "Wall"},
	}))
	decodePayload(t, nextMessage(t, conn), &result)
	assert.Equal(t, 80.0, result.Damage)

	// no victim
	conn.handleMessage(clientMessage(t, network.MsgTypeDamage, network.DamagePayload{RequestID: "r3", Damage: 80}))
	decodePayload(t, nextMessage(t, conn), &result)
	assert.Equal(t, 80.0, result.Damage)
}

func TestStatusRequest(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultProtection())
	conn := NewConnection(nil, srv, "host-a")

	status := func(target *network.TargetPayload) string {
		conn.handleMessage(clientMessage(t, network.MsgTypeStatus, network.StatusPayload{RequestID: "s", Target: target}))
		msg := nextMessage(t, conn)
		require.Equal(t, network.MsgTypeStatusResult, msg.Type)
		var result network.StatusResultPayload
		decodePayload(t, msg, &result)
		return result.Text
	}

	assert.Equal(t, "", status(nil))
	assert.Equal(t, "", status(&network.TargetPayload{Kind: "structure"}))
	assert.Equal(t, protection.StatusOff, status(&network.TargetPayload{TribeID: 20, Kind: "structure"}))

	conn.handleMessage(clientMessage(t, network.MsgTypePlayerDisconnected, network.PlayerDisconnectedPayload{PlayerID: 1, TribeID: 20}))
	assert.Contains(t, status(&network.TargetPayload{TribeID: 20, Kind: "structure"}), "[ORP] OFFLINE PROTECTION IN: ")

	srv.engine.SetConfig(instantProtection())
	assert.Equal(t, protection.StatusOn, status(&network.TargetPayload{TribeID: 20, Kind: "structure"}))
}

func TestInvalidMessages(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultProtection())
	conn := NewConnection(nil, srv, "host-a")

	conn.handleMessage(&network.ClientMessage{Type: "launch_rockets"})
	var errPayload network.ErrorPayload
	msg := nextMessage(t, conn)
	require.Equal(t, network.MsgTypeError, msg.Type)
	decodePayload(t, msg, &errPayload)
	assert.Equal(t, "unknown_message_type", errPayload.Code)

	conn.handleMessage(&network.ClientMessage{Type: network.MsgTypeDamage, Payload: json.RawMessage(`{"damage":"lots"}`)})
	decodePayload(t, nextMessage(t, conn), &errPayload)
	assert.Equal(t, "invalid_damage", errPayload.Code)

	conn.handleMessage(&network.ClientMessage{Type: network.MsgTypePlayerConnected, Payload: json.RawMessage(`[]`)})
	decodePayload(t, nextMessage(t, conn), &errPayload)
	assert.Equal(t, "invalid_player", errPayload.Code)
}

func TestPing(t *testing.T) {
	srv, _ := newTestServer(t, config.DefaultProtection())
	conn := NewConnection(nil, srv, "host-a")

	conn.handleMessage(&network.ClientMessage{Type: network.MsgTypePing})
	assert.Equal(t, network.MsgTypePong, nextMessage(t, conn).Type)
}

func TestCloseDisconnectsReportedPlayers(t *testing.T) {
	srv, engine := newTestServer(t, instantProtection())
	hostA := NewConnection(nil, srv, "host-a")
	hostB := NewConnection(nil, srv, "host-b")

	hostA.handleMessage(clientMessage(t, network.MsgTypePlayerConnected, network.PlayerConnectedPayload{PlayerID: 1, TribeID: 20}))
	hostB.handleMessage(clientMessage(t, network.MsgTypePlayerConnected, network.PlayerConnectedPayload{PlayerID: 2, TribeID: 21}))
	require.False(t, engine.IsTribeOrpActive(20, time.Now()))

	hostA.Close()
	hostA.Close()

	assert.True(t, engine.IsTribeOrpActive(20, time.Now()))
	assert.False(t, engine.IsTribeOrpActive(21, time.Now()))

	_, ok := srv.session.GetPlayer(1)
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		hostA.SendMessage(&network.ServerMessage{Type: network.MsgTypePong})
		srv.session.Notify(1, "late")
	})
}

func TestPlayerConnectedAfterCloseIgnored(t *testing.T) {
	srv, engine := newTestServer(t, instantProtection())
	conn := NewConnection(nil, srv, "host-a")
	conn.Close()

	conn.handleMessage(clientMessage(t, network.MsgTypePlayerConnected, network.PlayerConnectedPayload{PlayerID: 1, TribeID: 20}))

	_, ok := srv.session.GetPlayer(1)
	assert.False(t, ok)
	tribes, players := engine.Stats()
	assert.Zero(t, tribes)
	assert.Zero(t, players)
}

func TestCloseRacingPlayerConnected(t *testing.T) {
	for i := 0; i < 50; i++ {
		srv, engine := newTestServer(t, instantProtection())
		conn := NewConnection(nil, srv, "host-a")
		msg := clientMessage(t, network.MsgTypePlayerConnected, network.PlayerConnectedPayload{PlayerID: 1, TribeID: 20})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			conn.handleMessage(msg)
		}()
		go func() {
			defer wg.Done()
			conn.Close()
		}()
		wg.Wait()

		_, ok := srv.session.GetPlayer(1)
		require.False(t, ok)
		if tribes, _ := engine.Stats(); tribes == 1 {
			require.True(t, engine.IsTribeOrpActive(20, time.Now()), "tribe left online by a closed host")
		}
	}
}
