package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/tackle/internal/adapters/weekly"
	service "github.com/okian/tackle/internal/app"
	"github.com/okian/tackle/internal/domain/playfeed"
	"github.com/okian/tackle/pkg/logger"
	"github.com/okian/tackle/pkg/metrics"
)

const (
	writeWait         = 10 * time.Second
	maxStreamInterval = 10 * time.Second
)

var upgrader = websocket.Upgrader{ //nolint:gochecknoglobals // stateless upgrader shared by handlers
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// origins are enforced by the CORS middleware
		return true
	},
}

// Stream message types.
const (
	messageHeader = "header"
	messageFrame  = "frame"
	messageEnd    = "end"
)

// streamMessage is one websocket message of a play stream. The header
// carries the feed without frames; each frame follows in its own message.
type streamMessage struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Feed    *playfeed.Feed  `json:"feed,omitempty"`
	Frame   *playfeed.Frame `json:"frame,omitempty"`
}

// PlaysHandler serves play feeds.
type PlaysHandler struct {
	plays    PlayFeeds
	interval time.Duration
	logger   logger.Logger
}

// NewPlaysHandler creates a new plays handler.
func NewPlaysHandler(plays PlayFeeds, interval time.Duration, l logger.Logger) *PlaysHandler {
	return &PlaysHandler{plays: plays, interval: interval, logger: l}
}

// HandleGetPlay handles GET /plays/{gameID}/{playID} requests.
func (h *PlaysHandler) HandleGetPlay(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_play"
	feed, ok := h.feed(w, r, op)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// HandleStreamPlay handles GET /plays/{gameID}/{playID}/stream requests.
// The feed is built before the upgrade so lookup errors are plain HTTP
// errors.
func (h *PlaysHandler) HandleStreamPlay(w http.ResponseWriter, r *http.Request) {
	const op = "api.stream_play"
	interval := h.interval
	if v := r.URL.Query().Get("interval_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 || time.Duration(ms)*time.Millisecond > maxStreamInterval {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("invalid interval_ms %q", v)))
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	feed, ok := h.feed(w, r, op)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	log := h.logger.Named("stream")
	log.Info(r.Context(), "play stream opened",
		logger.String("session", session),
		logger.Int64("gameId", feed.GameID),
		logger.Int64("playId", feed.PlayID),
		logger.Int("frames", len(feed.Frames)),
	)

	// The reader only notices the client going away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.stream(ctx, conn, session, feed, interval); err != nil {
		log.Debug(ctx, "play stream ended early", logger.String("session", session), logger.Error(err))
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of play"))
	log.Info(ctx, "play stream finished", logger.String("session", session))
}

func (h *PlaysHandler) stream(ctx context.Context, conn *websocket.Conn, session string, feed playfeed.Feed, interval time.Duration) error { //nolint:gocritic // hugeParam: feed is copied to strip frames from the header
	frames := feed.Frames
	feed.Frames = nil
	if err := send(conn, streamMessage{Type: messageHeader, Session: session, Feed: &feed}); err != nil {
		return err
	}

	for i := range frames {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		if err := send(conn, streamMessage{Type: messageFrame, Session: session, Frame: &frames[i]}); err != nil {
			return err
		}
		metrics.RecordPlayFrameStreamed()
	}
	return send(conn, streamMessage{Type: messageEnd, Session: session})
}

func send(conn *websocket.Conn, msg streamMessage) error { //nolint:gocritic // hugeParam: small message value
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// feed resolves the path and query parameters and builds the feed. It
// writes the error response itself and reports whether to continue.
func (h *PlaysHandler) feed(w http.ResponseWriter, r *http.Request, op string) (playfeed.Feed, bool) {
	if h.plays == nil {
		writeError(w, http.StatusServiceUnavailable, "plays_unavailable", NewKind(op, ErrUnavailable))
		return playfeed.Feed{}, false
	}

	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("invalid gameID")))
		return playfeed.Feed{}, false
	}
	playID, err := strconv.ParseInt(chi.URLParam(r, "playID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("invalid playID")))
		return playfeed.Feed{}, false
	}
	var tacklerID int64
	if v := r.URL.Query().Get("tacklerId"); v != "" {
		if tacklerID, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("invalid tacklerId")))
			return playfeed.Feed{}, false
		}
	}

	feed, err := h.plays.Feed(r.Context(), gameID, playID, tacklerID)
	switch {
	case err == nil:
		return feed, true
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, playfeed.ErrNoRows), errors.Is(err, playfeed.ErrClubs):
		writeError(w, http.StatusUnprocessableEntity, "unprocessable", WrapKind(op, ErrUnprocessable, err))
	default:
		h.logger.Error(r.Context(), "play feed failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
	return playfeed.Feed{}, false
}

// isNotFound translates lookup misses of the play tables and week files.
func isNotFound(err error) bool {
	for _, target := range []error{
		service.ErrPlayNotFound,
		service.ErrGameNotFound,
		service.ErrNoTackler,
		weekly.ErrUnknownGame,
		weekly.ErrUnknownPlay,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
