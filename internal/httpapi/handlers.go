package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/pixelpets/lobby-backend/internal/hub"
	"github.com/pixelpets/lobby-backend/internal/shard"
)

type shardInfo struct {
	ServerID string `json:"server_id"`
	Players  int    `json:"players"`
}

// ListShards reports each shard's label and live player count, queried
// through the shards' own loops so the counts are race-free.
func ListShards(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []*shard.Shard, 1)
		h.Inbox() <- hub.ListShards{Reply: reply}
		shards := <-reply

		infos := make([]shardInfo, 0, len(shards))
		for _, sh := range shards {
			stateReply := make(chan shard.View, 1)
			sh.Inbox() <- shard.GetState{Reply: stateReply}
			view := <-stateReply
			infos = append(infos, shardInfo{ServerID: view.ShardID, Players: view.NumPlayers})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(infos)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
