package shard

import (
	"fmt"
	"time"

	"github.com/pixelpets/lobby-backend/pkg/types"
	"go.uber.org/zap"
)

// battleMinEnergy: both players must be at or above this to battle. Exactly
// 70 is sufficient.
const battleMinEnergy = 70

// Battle room lifecycle: waiting until both players signal ready, then
// running. A room is deleted outright when a result is broadcast or a
// forfeiture resolves; there is no stored terminal state.
const (
	battleStateWaiting = "waiting"
	battleStateRunning = "running"
)

type battleRoom struct {
	id      string
	player1 int64
	player2 int64
	scores  map[int64]int
	ready   map[int64]bool
	state   string
}

func (r *battleRoom) has(userID int64) bool {
	return userID == r.player1 || userID == r.player2
}

func (r *battleRoom) opponent(userID int64) int64 {
	if userID == r.player1 {
		return r.player2
	}
	return r.player1
}

// createBattle allocates a room in the waiting state. The id is the ordered
// player ids plus a millisecond timestamp, so concurrent rooms never collide.
func (s *Shard) createBattle(player1, player2 int64) *battleRoom {
	lo, hi := player1, player2
	if lo > hi {
		lo, hi = hi, lo
	}
	room := &battleRoom{
		id:      fmt.Sprintf("%d_%d_%d", lo, hi, time.Now().UnixMilli()),
		player1: player1,
		player2: player2,
		scores:  map[int64]int{player1: 0, player2: 0},
		ready:   make(map[int64]bool),
		state:   battleStateWaiting,
	}
	s.battles[room.id] = room
	s.log.Info("battle room created", zap.String("battle_id", room.id),
		zap.Int64("player1", player1), zap.Int64("player2", player2))
	return room
}

func (s *Shard) findBattleByUser(userID int64) *battleRoom {
	for _, room := range s.battles {
		if room.has(userID) {
			return room
		}
	}
	return nil
}

// handleBattleInvite relays an invitation after checking the inviter's
// energy and the invitee's presence.
func (s *Shard) handleBattleInvite(env types.Envelope) {
	var p types.BattleInvitePayload
	if err := env.DecodePayload(&p); err != nil || p.ToUserID == nil {
		s.log.Warn("battle_invite missing to_user_id, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}
	to := *p.ToUserID

	if energy, known := s.playerEnergy(env.UserID); known && energy < battleMinEnergy {
		s.sendTo(env.UserID, types.TypeBattleNotAllowed, env.UserID, types.NotAllowedPayload{
			Reason:  types.ReasonInviterLowEnergy,
			Message: "Your pet is too tired or sleeping to start a battle.",
		})
		return
	}

	if _, online := s.clients[to]; !online {
		s.sendTo(env.UserID, types.TypeBattleNotAllowed, env.UserID, types.NotAllowedPayload{
			Reason:  types.ReasonTargetOffline,
			Message: "That player is offline and cannot be challenged.",
		})
		return
	}

	s.sendTo(to, types.TypeBattleInvite, env.UserID,
		types.BattleRelayPayload{FromUserID: env.UserID, ToUserID: to})
}

// handleBattleAccept gates on both energies and double-booking, then creates
// the room and sends battle_start to both parties.
func (s *Shard) handleBattleAccept(env types.Envelope) {
	var p types.BattleAcceptPayload
	if err := env.DecodePayload(&p); err != nil || p.FromUserID == nil {
		s.log.Warn("battle_accept missing from_user_id, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}
	inviter := *p.FromUserID
	accepter := env.UserID

	inviterEnergy, inviterKnown := s.playerEnergy(inviter)
	accepterEnergy, accepterKnown := s.playerEnergy(accepter)
	if (inviterKnown && inviterEnergy < battleMinEnergy) ||
		(accepterKnown && accepterEnergy < battleMinEnergy) {
		blocked := types.NotAllowedPayload{
			Reason:  types.ReasonLowEnergy,
			Message: "Both pets must be fully rested (energy 70 or more) to battle.",
		}
		s.sendTo(inviter, types.TypeBattleNotAllowed, inviter, blocked)
		s.sendTo(accepter, types.TypeBattleNotAllowed, accepter, blocked)
		return
	}

	// A player id may appear in at most one active room per shard.
	if s.findBattleByUser(inviter) != nil || s.findBattleByUser(accepter) != nil {
		s.sendTo(accepter, types.TypeBattleNotAllowed, accepter, types.NotAllowedPayload{
			Reason:  types.ReasonAlreadyInBattle,
			Message: "You or your opponent is already in a battle.",
		})
		return
	}

	room := s.createBattle(inviter, accepter)

	start := types.BattleStartPayload{
		BattleID:  room.id,
		Player1ID: room.player1,
		Player2ID: room.player2,
	}
	for _, pid := range []int64{room.player1, room.player2} {
		s.sendTo(pid, types.TypeBattleStart, pid, start)
	}
}

// handleBattleReady marks the sender ready; once both flags are set the room
// moves to running and battle_go goes to both players.
func (s *Shard) handleBattleReady(env types.Envelope) {
	var p types.BattleReadyPayload
	if err := env.DecodePayload(&p); err != nil || p.BattleID == "" {
		s.log.Warn("battle_ready missing battle_id, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}

	room, ok := s.battles[p.BattleID]
	if !ok || !room.has(env.UserID) {
		s.log.Warn("battle_ready for unknown room, dropped",
			zap.String("battle_id", p.BattleID), zap.Int64("user_id", env.UserID))
		return
	}

	room.ready[env.UserID] = true
	if !room.ready[room.player1] || !room.ready[room.player2] {
		return
	}

	room.state = battleStateRunning
	s.log.Info("battle running", zap.String("battle_id", room.id))

	goMsg := types.BattleStartPayload{
		BattleID:  room.id,
		Player1ID: room.player1,
		Player2ID: room.player2,
	}
	for _, pid := range []int64{room.player1, room.player2} {
		s.sendTo(pid, types.TypeBattleGo, pid, goMsg)
	}
}

// handleBattleUpdate overwrites the sender's live score and the declared
// state, then relays the room's scores to both players.
func (s *Shard) handleBattleUpdate(env types.Envelope) {
	var p types.BattleUpdatePayload
	if err := env.DecodePayload(&p); err != nil || p.BattleID == "" {
		s.log.Warn("battle_update missing battle_id, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}

	room, ok := s.battles[p.BattleID]
	if !ok || !room.has(env.UserID) {
		s.log.Warn("battle_update for unknown room, dropped",
			zap.String("battle_id", p.BattleID), zap.Int64("user_id", env.UserID))
		return
	}

	room.scores[env.UserID] = p.Score
	if p.State == "" {
		p.State = battleStateRunning
	}
	room.state = p.State

	update := types.BattleUpdateBroadcastPayload{
		BattleID: room.id,
		Scores:   room.scores,
		State:    room.state,
	}
	s.sendTo(room.player1, types.TypeBattleUpdate, env.UserID, update)
	s.sendTo(room.player2, types.TypeBattleUpdate, env.UserID, update)
}

// handleBattleResult folds in the sender's final score if present, then
// settles the room.
func (s *Shard) handleBattleResult(env types.Envelope) {
	var p types.BattleResultPayload
	if err := env.DecodePayload(&p); err != nil || p.BattleID == "" {
		s.log.Warn("battle_result missing battle_id, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}

	room, ok := s.battles[p.BattleID]
	if !ok || !room.has(env.UserID) {
		s.log.Warn("battle_result for unknown room, dropped",
			zap.String("battle_id", p.BattleID), zap.Int64("user_id", env.UserID))
		return
	}

	if p.Score != nil {
		room.scores[env.UserID] = *p.Score
	}

	s.settleBattle(room, env.UserID)
}

// settleBattle computes the winner from the live scores, awards the winner
// their raw score and the loser half of theirs, broadcasts battle_result to
// both players, and deletes the room. Equal scores are a draw: no winner id,
// both sides take the loser award.
func (s *Shard) settleBattle(room *battleRoom, envUserID int64) {
	score1 := room.scores[room.player1]
	score2 := room.scores[room.player2]

	result := types.BattleResultBroadcastPayload{
		BattleID:     room.id,
		Player1ID:    room.player1,
		Player2ID:    room.player2,
		Player1Score: score1,
		Player2Score: score2,
	}

	switch {
	case score1 > score2:
		result.WinnerUserID = room.player1
		result.WinnerPoints = score1
		result.LoserPoints = score2 / 2
	case score2 > score1:
		result.WinnerUserID = room.player2
		result.WinnerPoints = score2
		result.LoserPoints = score1 / 2
	default:
		result.WinnerPoints = score1 / 2
		result.LoserPoints = score2 / 2
	}

	s.log.Info("battle settled", zap.String("battle_id", room.id),
		zap.Int64("winner", result.WinnerUserID),
		zap.Int("player1_score", score1), zap.Int("player2_score", score2))

	s.sendTo(room.player1, types.TypeBattleResult, envUserID, result)
	s.sendTo(room.player2, types.TypeBattleResult, envUserID, result)

	delete(s.battles, room.id)
}

// resolveBattleDisconnect applies the forfeiture rule for a player who is
// dropping out. Only a running room produces a result; waiting and any other
// state tear down silently.
func (s *Shard) resolveBattleDisconnect(userID int64) {
	room := s.findBattleByUser(userID)
	if room == nil {
		return
	}

	if room.state != battleStateRunning {
		s.log.Info("battle torn down before start",
			zap.String("battle_id", room.id), zap.Int64("user_id", userID))
		delete(s.battles, room.id)
		return
	}

	winner := room.opponent(userID)
	result := types.BattleResultBroadcastPayload{
		BattleID:     room.id,
		WinnerUserID: winner,
		Player1ID:    room.player1,
		Player2ID:    room.player2,
		Player1Score: room.scores[room.player1],
		Player2Score: room.scores[room.player2],
		WinnerPoints: room.scores[winner],
		LoserPoints:  room.scores[userID] / 2,
	}

	s.log.Info("battle forfeited on disconnect",
		zap.String("battle_id", room.id),
		zap.Int64("disconnected", userID), zap.Int64("winner", winner))

	s.sendTo(room.player1, types.TypeBattleResult, winner, result)
	s.sendTo(room.player2, types.TypeBattleResult, winner, result)

	delete(s.battles, room.id)
}
