package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/pixelpets/lobby-backend/internal/hub"
	"github.com/pixelpets/lobby-backend/internal/shard"
	"github.com/pixelpets/lobby-backend/pkg/types"
	"go.uber.org/zap"
)

const (
	writeWait  = 3 * time.Second
	outboxSize = 16
)

// Handler upgrades a connection, binds it to the shard named in the query,
// and bridges it to the shard's inbox. The connection's identity is fixed by
// its first accepted join_lobby; every later message is checked against it.
func Handler(h *hub.Hub, allowedOrigins []string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shardID := r.URL.Query().Get("shard")
		if shardID == "" {
			http.Error(w, "missing shard", http.StatusBadRequest)
			return
		}

		reply := make(chan *shard.Shard, 1)
		h.Inbox() <- hub.GetShard{ID: shardID, Reply: reply}
		sh := <-reply
		if sh == nil {
			http.Error(w, "unknown shard", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: allowedOrigins,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		clog := log.With(zap.String("shard", shardID), zap.String("conn_id", connID))
		outbox := make(chan []byte, outboxSize)

		// Writer goroutine: drains the outbox the shard delivers into.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case data, ok := <-outbox:
					if !ok {
						return
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeWait)
					_ = conn.Write(ctx, websocket.MessageText, data)
					cancel()
				}
			}
		}()

		var boundID int64
		bound := false
		defer func() {
			if bound {
				sh.Inbox() <- shard.Leave{ConnID: connID, UserID: boundID}
			}
		}()

		// Reader loop. Any read error, including a clean close, ends the
		// connection; the deferred Leave runs forfeiture and presence
		// cleanup.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}

			var env types.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				clog.Warn("non-JSON message dropped", zap.Error(err))
				continue
			}

			// The client's shard id is advisory at best; the shard that
			// accepted the connection is authoritative.
			env.ServerID = shardID

			if env.Type == types.TypeJoinLobby {
				if env.UserID <= 0 {
					clog.Warn("join_lobby without a valid user_id, dropped")
					continue
				}
				if bound && env.UserID != boundID {
					clog.Warn("join_lobby for another identity, dropped",
						zap.Int64("bound", boundID), zap.Int64("claimed", env.UserID))
					continue
				}

				var p types.JoinLobbyPayload
				if err := env.DecodePayload(&p); err != nil {
					clog.Warn("bad join_lobby payload, dropped", zap.Error(err))
					continue
				}

				joinReply := make(chan error, 1)
				sh.Inbox() <- shard.Join{
					ConnID:  connID,
					UserID:  env.UserID,
					Outbox:  outbox,
					Payload: p,
					Reply:   joinReply,
				}
				if err := <-joinReply; err != nil {
					clog.Warn("join rejected", zap.Int64("user_id", env.UserID), zap.Error(err))
					continue
				}

				boundID = env.UserID
				bound = true
				continue
			}

			if !bound {
				clog.Warn("message before join_lobby, dropped", zap.String("type", env.Type))
				continue
			}
			if env.UserID != 0 && env.UserID != boundID {
				clog.Warn("impersonation attempt, dropped",
					zap.Int64("bound", boundID), zap.Int64("claimed", env.UserID),
					zap.String("type", env.Type))
				continue
			}
			env.UserID = boundID

			sh.Inbox() <- shard.FromClient{Env: env}
		}
	}
}
