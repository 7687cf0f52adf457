package shard

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/pixelpets/lobby-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrIdentityTaken = errors.New("player id already bound to a live connection")

// World bounds for the pseudo-random spawn used when a join carries no
// position.
const (
	worldMaxX = 200
	worldMaxY = 200
)

const (
	defaultEnergy  = 100
	defaultStatus  = "ACTIVE"
	defaultPetName = "MyPet"
)

// handleJoin registers the connection, builds the player snapshot (missing
// fields get defaults, missing position gets a spawn point), unicasts the
// full lobby to the joiner and announces the new player to everyone else.
func (s *Shard) handleJoin(m Join) error {
	if existing, ok := s.clients[m.UserID]; ok && existing.connID != m.ConnID {
		s.log.Warn("join rejected: id bound to another live connection",
			zap.Int64("user_id", m.UserID))
		return ErrIdentityTaken
	}
	s.clients[m.UserID] = &client{connID: m.ConnID, outbox: m.Outbox}

	snap := types.PlayerSnapshot{
		UserID:      m.UserID,
		DisplayName: m.Payload.DisplayName,
		PetID:       m.Payload.PetID,
		PetName:     m.Payload.PetName,
		Energy:      defaultEnergy,
		Status:      m.Payload.Status,
		Score:       m.Payload.Score,
	}
	if snap.DisplayName == "" {
		snap.DisplayName = fmt.Sprintf("Player%d", m.UserID)
	}
	if snap.PetName == "" {
		snap.PetName = defaultPetName
	}
	if snap.Status == "" {
		snap.Status = defaultStatus
	}
	if m.Payload.Energy != nil {
		snap.Energy = *m.Payload.Energy
	}
	if m.Payload.X != nil && m.Payload.Y != nil {
		snap.X, snap.Y = *m.Payload.X, *m.Payload.Y
	} else {
		snap.X, snap.Y = spawnPosition()
	}
	s.players[m.UserID] = snap

	s.log.Info("player joined lobby", zap.Int64("user_id", m.UserID))

	s.sendTo(m.UserID, types.TypeLobbyState, m.UserID,
		types.LobbyStatePayload{Players: s.orderedPlayers()})
	s.broadcast(types.TypePlayerJoined, m.UserID,
		types.PlayerJoinedPayload{Player: snap}, m.UserID)
	return nil
}

// handleLeave runs forfeiture before releasing the identity binding, then
// tells the remaining players.
func (s *Shard) handleLeave(m Leave) {
	c, ok := s.clients[m.UserID]
	if !ok || c.connID != m.ConnID {
		// A rejected duplicate connection closing; the live one stays.
		return
	}

	s.resolveBattleDisconnect(m.UserID)

	delete(s.clients, m.UserID)
	delete(s.players, m.UserID)
	s.throttle.forget(m.UserID)

	s.log.Info("player left lobby", zap.Int64("user_id", m.UserID))
	s.broadcast(types.TypePlayerLeft, m.UserID, struct{}{}, m.UserID)
}

// handlePetStateUpdate merges the provided fields into the snapshot (absent
// fields stay put) and broadcasts the merged result, sender included. Never
// throttled.
func (s *Shard) handlePetStateUpdate(env types.Envelope) {
	var p types.PetStateUpdatePayload
	if err := env.DecodePayload(&p); err != nil {
		s.log.Warn("bad pet_state_update payload",
			zap.Int64("user_id", env.UserID), zap.Error(err))
		return
	}

	snap := s.players[env.UserID]
	snap.UserID = env.UserID
	if p.Energy != nil {
		snap.Energy = *p.Energy
	}
	if p.Status != nil {
		snap.Status = *p.Status
	}
	if p.Score != nil {
		snap.Score = *p.Score
	}
	if p.X != nil {
		snap.X = *p.X
	}
	if p.Y != nil {
		snap.Y = *p.Y
	}
	s.players[env.UserID] = snap

	s.broadcast(types.TypePetStateUpdate, env.UserID,
		types.PetStateBroadcastPayload{Player: snap}, noExclude)
}

// handleUpdatePosition stores the new coordinates and relays them to the
// rest of the shard as other_pet_moved, at most once per 50ms per player.
func (s *Shard) handleUpdatePosition(env types.Envelope, now time.Time) {
	var p types.UpdatePositionPayload
	if err := env.DecodePayload(&p); err != nil || p.X == nil || p.Y == nil {
		s.log.Warn("update_position missing x/y, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}

	if !s.throttle.shouldEmit(env.UserID, now) {
		return
	}

	snap := s.players[env.UserID]
	snap.UserID = env.UserID
	snap.X, snap.Y = *p.X, *p.Y
	s.players[env.UserID] = snap

	s.broadcast(types.TypeOtherPetMoved, env.UserID, types.OtherPetMovedPayload{
		Player: types.MovedPlayer{UserID: env.UserID, X: snap.X, Y: snap.Y},
	}, env.UserID)
}

// orderedPlayers returns all snapshots in ascending id order so clients can
// render the lobby deterministically.
func (s *Shard) orderedPlayers() []types.PlayerSnapshot {
	out := make([]types.PlayerSnapshot, 0, len(s.players))
	for _, snap := range s.players {
		out = append(out, snap)
	}
	slices.SortFunc(out, func(a, b types.PlayerSnapshot) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

// playerEnergy returns the last known energy for a player; ok is false when
// no snapshot exists, in which case energy gates do not apply.
func (s *Shard) playerEnergy(userID int64) (int, bool) {
	snap, ok := s.players[userID]
	if !ok {
		return 0, false
	}
	return snap.Energy, true
}

func spawnPosition() (float64, float64) {
	return float64(rand.IntN(worldMaxX + 1)), float64(rand.IntN(worldMaxY + 1))
}
