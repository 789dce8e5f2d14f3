package handlers

import (
	"net/http"
	"time"

	"github.com/CLDWare/attendance-backend/config"
	"github.com/CLDWare/attendance-backend/internal/attendance"
	contextkeys "github.com/CLDWare/attendance-backend/internal/contextKeys"
	"github.com/CLDWare/attendance-backend/internal/feed"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"github.com/CLDWare/attendance-backend/pkg/logger"
	"github.com/MonkyMars/gecho"

	"github.com/gorilla/websocket"
)

// FeedHandler streams redemption events for a lecturer's active session
type FeedHandler struct {
	config *config.Config
	store  *attendance.Store
	hub    *feed.Hub
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(cfg *config.Config, store *attendance.Store, hub *feed.Hub) *FeedHandler {
	return &FeedHandler{
		config: cfg,
		store:  store,
		hub:    hub,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, check the origin properly!
	},
}

// handles GET /ws/feed requests
// Lecturers receive one JSON event per successful redemption on their active
// session, plus periodic pings while the feed is idle
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := ctx.Value(contextkeys.AuthUserKey).(models.User)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	session, err := h.store.ActiveSession(ctx, user.ID)
	if err != nil {
		logger.Err(err)
		gecho.InternalServerError(w).Send()
		return
	}
	if session == nil {
		gecho.NotFound(w).WithMessage("No active session").Send()
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Err(err)
		return
	}
	defer ws.Close()

	events := h.hub.Subscribe(session.ID)
	defer h.hub.Unsubscribe(session.ID, events)

	// Read pump only exists to notice the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.config.Feed.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(h.config.Feed.WriteTimeout))
			if err := ws.WriteJSON(event); err != nil {
				logger.Err("write:", err)
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(h.config.Feed.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
