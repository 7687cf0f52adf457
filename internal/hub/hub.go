package hub

import (
	"context"

	"github.com/pixelpets/lobby-backend/internal/shard"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

type GetShard struct {
	ID    string
	Reply chan *shard.Shard
}

type ListShards struct {
	Reply chan []*shard.Shard
}

type ShutdownHub struct{}

func (GetShard) isHubMsg()    {}
func (ListShards) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the fixed set of shard coordinators. Shards never cross-talk;
// the hub only hands out references.
type Hub struct {
	inbox  chan HubMsg
	shards map[string]*shard.Shard
	order  []string
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, shardIDs []string, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		shards: make(map[string]*shard.Shard, len(shardIDs)),
		order:  shardIDs,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, id := range shardIDs {
		h.shards[id] = shard.New(ctx, id, log)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetShard:
				msg.Reply <- h.shards[msg.ID] // may be nil

			case ListShards:
				out := make([]*shard.Shard, 0, len(h.order))
				for _, id := range h.order {
					out = append(out, h.shards[id])
				}
				msg.Reply <- out

			case ShutdownHub:
				for _, sh := range h.shards {
					sh.Inbox() <- shard.Shutdown{}
				}
				clear(h.shards)
				h.cancel()
			}
		}
	}
}
