package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pixelpets/lobby-backend/internal/hub"
	"github.com/pixelpets/lobby-backend/internal/ws"
	"go.uber.org/zap"
)

func SetupRoutes(h *hub.Hub, allowedOrigins []string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/shards", ListShards(h))
	r.Get("/ws", ws.Handler(h, allowedOrigins, log))
	return r
}
