package types

import "encoding/json"

// Inbound message types (client -> server).
const (
	TypeJoinLobby         = "join_lobby"
	TypePetStateUpdate    = "pet_state_update"
	TypeUpdatePosition    = "update_position"
	TypeChatRequest       = "chat_request"
	TypeChatRequestAccept = "chat_request_accept"
	TypeChatMessage       = "chat_message"
	TypeBattleInvite      = "battle_invite"
	TypeBattleAccept      = "battle_accept"
	TypeBattleReady       = "battle_ready"
	TypeBattleUpdate      = "battle_update"
	TypeBattleResult      = "battle_result"
)

// Outbound message types (server -> client). A few names are shared with the
// inbound set because the server relays them verbatim.
const (
	TypeLobbyState       = "lobby_state"
	TypePlayerJoined     = "player_joined"
	TypePlayerLeft       = "player_left"
	TypeOtherPetMoved    = "other_pet_moved"
	TypeChatApproved     = "chat_approved"
	TypeChatNotAllowed   = "chat_not_allowed"
	TypeBattleNotAllowed = "battle_not_allowed"
	TypeBattleStart      = "battle_start"
	TypeBattleGo         = "battle_go"
)

// Reason codes carried by *_not_allowed payloads.
const (
	ReasonTargetOffline    = "TARGET_OFFLINE"
	ReasonLowEnergy        = "LOW_ENERGY"
	ReasonChatNotApproved  = "CHAT_NOT_APPROVED"
	ReasonInviterLowEnergy = "INVITER_LOW_ENERGY"
	ReasonAlreadyInBattle  = "ALREADY_IN_BATTLE"
)

// Envelope is the wire shape of every message in both directions. ServerID is
// advisory on the way in; the coordinator overwrites it with the shard that
// actually owns the connection before dispatch.
type Envelope struct {
	Type     string          `json:"type"`
	ServerID string          `json:"server_id"`
	UserID   int64           `json:"user_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// DecodePayload unmarshals the envelope payload into v. A missing payload is
// treated as an empty object so handlers see zero values, not an error.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// PlayerSnapshot is the lobby view of one player. Energy, status, and score
// are advisory copies supplied by the client; the coordinator only reads them
// for gating decisions.
type PlayerSnapshot struct {
	UserID      int64   `json:"user_id"`
	DisplayName string  `json:"display_name"`
	PetID       int64   `json:"pet_id"`
	PetName     string  `json:"pet_name"`
	Energy      int     `json:"energy"`
	Status      string  `json:"status"`
	Score       int     `json:"score"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// Inbound payloads. Optional fields are pointers so a merge can tell "absent"
// from "zero".

type JoinLobbyPayload struct {
	DisplayName string   `json:"display_name"`
	PetID       int64    `json:"pet_id"`
	PetName     string   `json:"pet_name"`
	Energy      *int     `json:"energy"`
	Status      string   `json:"status"`
	Score       int      `json:"score"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
}

type PetStateUpdatePayload struct {
	Energy *int     `json:"energy"`
	Status *string  `json:"status"`
	Score  *int     `json:"score"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
}

type UpdatePositionPayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type ChatRequestPayload struct {
	ToUserID *int64 `json:"to_user_id"`
}

type ChatRequestAcceptPayload struct {
	FromUserID *int64 `json:"from_user_id"`
}

type ChatMessagePayload struct {
	ToUserID *int64 `json:"to_user_id"`
	Content  string `json:"content"`
}

type BattleInvitePayload struct {
	ToUserID *int64 `json:"to_user_id"`
}

type BattleAcceptPayload struct {
	FromUserID *int64 `json:"from_user_id"`
}

type BattleReadyPayload struct {
	BattleID string `json:"battle_id"`
}

type BattleUpdatePayload struct {
	BattleID string `json:"battle_id"`
	Score    int    `json:"score"`
	State    string `json:"state"`
}

// BattleResultPayload is the client's request to settle a battle. Score is
// optional; when present it is folded in as the sender's final score before
// the winner is computed.
type BattleResultPayload struct {
	BattleID string `json:"battle_id"`
	Score    *int   `json:"score"`
}

// Outbound payloads.

type LobbyStatePayload struct {
	Players []PlayerSnapshot `json:"players"`
}

type PlayerJoinedPayload struct {
	Player PlayerSnapshot `json:"player"`
}

type PetStateBroadcastPayload struct {
	Player PlayerSnapshot `json:"player"`
}

type MovedPlayer struct {
	UserID int64   `json:"user_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type OtherPetMovedPayload struct {
	Player MovedPlayer `json:"player"`
}

type ChatRelayPayload struct {
	FromUserID int64  `json:"from_user_id"`
	ToUserID   int64  `json:"to_user_id"`
	Content    string `json:"content,omitempty"`
}

type ChatApprovedPayload struct {
	UserID1 int64 `json:"user_id_1"`
	UserID2 int64 `json:"user_id_2"`
}

// NotAllowedPayload is the body of chat_not_allowed and battle_not_allowed.
type NotAllowedPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type BattleRelayPayload struct {
	FromUserID int64 `json:"from_user_id"`
	ToUserID   int64 `json:"to_user_id"`
}

type BattleStartPayload struct {
	BattleID  string `json:"battle_id"`
	Player1ID int64  `json:"player1_id"`
	Player2ID int64  `json:"player2_id"`
}

type BattleUpdateBroadcastPayload struct {
	BattleID string        `json:"battle_id"`
	Scores   map[int64]int `json:"scores"`
	State    string        `json:"state"`
}

// BattleResultBroadcastPayload settles a battle for both parties. A draw is
// reported with WinnerUserID == 0.
type BattleResultBroadcastPayload struct {
	BattleID     string `json:"battle_id"`
	WinnerUserID int64  `json:"winner_user_id"`
	Player1ID    int64  `json:"player1_id"`
	Player2ID    int64  `json:"player2_id"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	WinnerPoints int    `json:"winner_points"`
	LoserPoints  int    `json:"loser_points"`
}
