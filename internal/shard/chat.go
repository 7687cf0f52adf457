package shard

import (
	"github.com/pixelpets/lobby-backend/pkg/types"
	"go.uber.org/zap"
)

// sleepEnergyMax: at or below this energy the pet is sleeping and cannot
// chat. 31 and above is allowed.
const sleepEnergyMax = 30

// chatPair is an unordered pair of player ids; (a,b) and (b,a) are the same
// key.
type chatPair struct{ lo, hi int64 }

func makeChatPair(a, b int64) chatPair {
	if a > b {
		a, b = b, a
	}
	return chatPair{lo: a, hi: b}
}

func (s *Shard) approveChat(a, b int64) {
	s.approved[makeChatPair(a, b)] = struct{}{}
}

func (s *Shard) chatApproved(a, b int64) bool {
	_, ok := s.approved[makeChatPair(a, b)]
	return ok
}

// handleChatRequest relays a consent request to the target, or tells the
// requester the target is offline.
func (s *Shard) handleChatRequest(env types.Envelope) {
	var p types.ChatRequestPayload
	if err := env.DecodePayload(&p); err != nil || p.ToUserID == nil {
		s.log.Warn("chat_request missing to_user_id, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}
	to := *p.ToUserID

	if _, online := s.clients[to]; !online {
		s.sendTo(env.UserID, types.TypeChatNotAllowed, env.UserID, types.NotAllowedPayload{
			Reason:  types.ReasonTargetOffline,
			Message: "That player is offline right now, so the chat invite cannot be sent.",
		})
		return
	}

	s.sendTo(to, types.TypeChatRequest, env.UserID,
		types.ChatRelayPayload{FromUserID: env.UserID, ToUserID: to})
}

// handleChatRequestAccept records mutual consent and notifies both parties.
func (s *Shard) handleChatRequestAccept(env types.Envelope) {
	var p types.ChatRequestAcceptPayload
	if err := env.DecodePayload(&p); err != nil || p.FromUserID == nil {
		s.log.Warn("chat_request_accept missing from_user_id, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}
	requester := *p.FromUserID
	accepter := env.UserID

	s.approveChat(requester, accepter)
	s.log.Info("chat pair approved",
		zap.Int64("requester", requester), zap.Int64("accepter", accepter))

	approved := types.ChatApprovedPayload{UserID1: requester, UserID2: accepter}
	for _, uid := range []int64{accepter, requester} {
		s.sendTo(uid, types.TypeChatApproved, uid, approved)
	}
}

// handleChatMessage gates on energy, consent, and target presence, then
// relays to both sides. The sender echo lets clients render history from a
// single stream.
func (s *Shard) handleChatMessage(env types.Envelope) {
	var p types.ChatMessagePayload
	if err := env.DecodePayload(&p); err != nil || p.ToUserID == nil {
		s.log.Warn("chat_message missing to_user_id, dropped",
			zap.Int64("user_id", env.UserID))
		return
	}
	to := *p.ToUserID

	if energy, known := s.playerEnergy(env.UserID); known && energy <= sleepEnergyMax {
		s.sendTo(env.UserID, types.TypeChatNotAllowed, env.UserID, types.NotAllowedPayload{
			Reason:  types.ReasonLowEnergy,
			Message: "Your pet is sleeping and cannot chat.",
		})
		return
	}

	if !s.chatApproved(env.UserID, to) {
		s.sendTo(env.UserID, types.TypeChatNotAllowed, env.UserID, types.NotAllowedPayload{
			Reason:  types.ReasonChatNotApproved,
			Message: "That player has not agreed to chat with you yet.",
		})
		return
	}

	if _, online := s.clients[to]; !online {
		s.sendTo(env.UserID, types.TypeChatNotAllowed, env.UserID, types.NotAllowedPayload{
			Reason:  types.ReasonTargetOffline,
			Message: "That player is offline right now.",
		})
		return
	}

	relay := types.ChatRelayPayload{
		FromUserID: env.UserID,
		ToUserID:   to,
		Content:    p.Content,
	}
	s.sendTo(env.UserID, types.TypeChatMessage, env.UserID, relay)
	s.sendTo(to, types.TypeChatMessage, env.UserID, relay)
}
