package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/gorilla/websocket"
)

const (
	defaultInterval = time.Second
	writeWait       = 5 * time.Second
)

// ProgressStream pushes the session's [models.ProgressState] over a websocket.
//
// One frame is written per interval until the pass is no longer running; the last frame
// carries the final counters and is followed by a normal close.
type ProgressStream struct {
	cmds     Commands
	interval time.Duration
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewProgressStream creates a [ProgressStream]. A zero interval means one second.
func NewProgressStream(cmds Commands, interval time.Duration, logger *log.Logger) *ProgressStream {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &ProgressStream{
		cmds:     cmds,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes returns the HTTP routes this handler serves.
func (s *ProgressStream) Routes() []string {
	return []string{"GET /ws/progress"}
}

// ServeHTTP upgrades the request and streams progress for ?action=.
func (s *ProgressStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action, err := models.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ctx := r.Context()
	session := SessionFrom(ctx)
	s.logger.Debug("progress client connected", "action", action)

	// Incoming frames are ignored; reading detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		p, err := s.cmds.Progress(ctx, session, action)
		if err != nil {
			s.logger.Warn("failed to read progress", "action", action, "error", err)
		}

		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(p); err != nil {
			s.logger.Debug("progress client write failed", "error", err)
			return
		}
		if !p.Running {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "finished")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			s.logger.Debug("progress client disconnected", "action", action)
			return
		case <-ctx.Done():
			return
		}
	}
}
