package shard

import (
	"context"
	"encoding/json"
	"maps"
	"time"

	"github.com/pixelpets/lobby-backend/pkg/types"
	"go.uber.org/zap"
)

type Msg interface{ isShardMsg() }

// Join registers a connection for a player and runs the lobby join. Reply
// receives nil on success or the rejection error.
type Join struct {
	ConnID  string
	UserID  int64
	Outbox  chan []byte // where this client wants to receive messages
	Payload types.JoinLobbyPayload
	Reply   chan error
}

func (Join) isShardMsg() {}

// Leave is sent when a connection closes. ConnID guards against a rejected
// duplicate connection tearing down the live one on its way out.
type Leave struct {
	ConnID string
	UserID int64
}

func (Leave) isShardMsg() {}

// FromClient carries one inbound envelope from a bound connection. The ws
// layer has already overwritten ServerID and UserID with trusted values.
type FromClient struct {
	Env types.Envelope
}

func (FromClient) isShardMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isShardMsg() {}

type Shutdown struct{}

func (Shutdown) isShardMsg() {}

// View reflects internal state without data races; used by tests and the
// shard-listing endpoint.
type View struct {
	ShardID       string
	NumPlayers    int
	Players       []types.PlayerSnapshot
	Battles       []BattleView
	ApprovedPairs int
}

type BattleView struct {
	BattleID  string
	Player1ID int64
	Player2ID int64
	Scores    map[int64]int
	Ready     map[int64]bool
	State     string
}

type client struct {
	connID string
	outbox chan []byte
}

// Shard is one isolated coordinator instance. All mutable state below is
// owned by the loop goroutine; nothing else touches it.
type Shard struct {
	id       string
	log      *zap.Logger
	inbox    chan Msg
	clients  map[int64]*client
	players  map[int64]types.PlayerSnapshot
	approved map[chatPair]struct{}
	battles  map[string]*battleRoom
	throttle *positionThrottle
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, id string, log *zap.Logger) *Shard {
	ctx, cancel := context.WithCancel(parent)

	s := &Shard{
		id:       id,
		log:      log.With(zap.String("shard", id)),
		inbox:    make(chan Msg, 64),
		clients:  make(map[int64]*client),
		players:  make(map[int64]types.PlayerSnapshot),
		approved: make(map[chatPair]struct{}),
		battles:  make(map[string]*battleRoom),
		throttle: newPositionThrottle(positionBroadcastInterval),
		ctx:      ctx,
		cancel:   cancel,
	}

	go s.loop()
	return s
}

func (s *Shard) ID() string { return s.id }

// Expose the inbox so the ws layer and tests can send messages.
func (s *Shard) Inbox() chan<- Msg { return s.inbox }

func (s *Shard) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- s.handleJoin(msg)

			case Leave:
				s.handleLeave(msg)

			case FromClient:
				s.dispatch(msg.Env)

			case GetState:
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Shard) shutdown() {
	for id, c := range s.clients {
		close(c.outbox) // tell the writer no more messages
		delete(s.clients, id)
	}
	s.cancel()
}

// dispatch routes one bound inbound message. Unknown types and malformed
// payloads are dropped with a log entry; nothing here is fatal.
func (s *Shard) dispatch(env types.Envelope) {
	switch env.Type {
	case types.TypePetStateUpdate:
		s.handlePetStateUpdate(env)
	case types.TypeUpdatePosition:
		s.handleUpdatePosition(env, time.Now())
	case types.TypeChatRequest:
		s.handleChatRequest(env)
	case types.TypeChatRequestAccept:
		s.handleChatRequestAccept(env)
	case types.TypeChatMessage:
		s.handleChatMessage(env)
	case types.TypeBattleInvite:
		s.handleBattleInvite(env)
	case types.TypeBattleAccept:
		s.handleBattleAccept(env)
	case types.TypeBattleReady:
		s.handleBattleReady(env)
	case types.TypeBattleUpdate:
		s.handleBattleUpdate(env)
	case types.TypeBattleResult:
		s.handleBattleResult(env)
	default:
		s.log.Warn("unknown message type",
			zap.String("type", env.Type), zap.Int64("user_id", env.UserID))
	}
}

const noExclude int64 = -1

// sendTo delivers one message to a single player. An offline recipient is
// silently skipped; delivery is simply not queued.
func (s *Shard) sendTo(to int64, typ string, envUserID int64, payload any) {
	c, ok := s.clients[to]
	if !ok {
		return
	}
	data, err := s.encode(typ, envUserID, payload)
	if err != nil {
		return
	}
	s.deliver(to, c, data)
}

// broadcast fans a message out to every live connection in the shard except
// excludeID (noExclude for none). One broken peer never blocks the others.
func (s *Shard) broadcast(typ string, envUserID int64, payload any, excludeID int64) {
	data, err := s.encode(typ, envUserID, payload)
	if err != nil {
		return
	}
	for id, c := range s.clients {
		if id == excludeID {
			continue
		}
		s.deliver(id, c, data)
	}
}

func (s *Shard) encode(typ string, envUserID int64, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal payload failed", zap.String("type", typ), zap.Error(err))
		return nil, err
	}
	data, err := json.Marshal(types.Envelope{
		Type:     typ,
		ServerID: s.id,
		UserID:   envUserID,
		Payload:  raw,
	})
	if err != nil {
		s.log.Error("marshal envelope failed", zap.String("type", typ), zap.Error(err))
		return nil, err
	}
	return data, nil
}

// deliver hands data to the client's writer without blocking the loop. A full
// outbox means the peer is too slow; the message is dropped for that peer.
func (s *Shard) deliver(userID int64, c *client, data []byte) {
	select {
	case c.outbox <- data:
	default:
		s.log.Warn("outbox full, dropping message", zap.Int64("user_id", userID))
	}
}

func (s *Shard) view() View {
	battles := make([]BattleView, 0, len(s.battles))
	for _, room := range s.battles {
		battles = append(battles, BattleView{
			BattleID:  room.id,
			Player1ID: room.player1,
			Player2ID: room.player2,
			Scores:    maps.Clone(room.scores),
			Ready:     maps.Clone(room.ready),
			State:     room.state,
		})
	}
	return View{
		ShardID:       s.id,
		NumPlayers:    len(s.players),
		Players:       s.orderedPlayers(),
		Battles:       battles,
		ApprovedPairs: len(s.approved),
	}
}
