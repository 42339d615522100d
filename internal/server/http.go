package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/leaderboard"
	"go.uber.org/zap"
)

// AdminPasswordHeader carries the admin password for destructive calls.
const AdminPasswordHeader = "X-Admin-Password"

const maxBodySize = 1 << 16

type handlers struct {
	srv    *Server
	logger *zap.Logger
}

// Handler returns the HTTP API and websocket endpoint.
func (s *Server) Handler() http.Handler {
	h := &handlers{srv: s, logger: s.logger}

	r := chi.NewRouter()
	r.Get("/healthz", h.health)

	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", h.createGame)
		r.Get("/", h.listGames)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getGame)
			r.Delete("/", h.removeGame)
			r.Get("/checksum", h.checksum)

			for _, name := range []string{cmdClick, cmdPlace, cmdMove, cmdUndo, cmdRedo, cmdReset, cmdPause, cmdResume} {
				r.Post("/"+name, h.command(name))
			}

			r.Route("/replay", func(r chi.Router) {
				r.Post("/", h.startReplay)
				r.Get("/", h.replayState)
				r.Post("/step", h.replayStep)
				r.Post("/first", h.replayNav((*game.Replay).First))
				r.Post("/last", h.replayNav((*game.Replay).Last))
				r.Post("/next", h.replayNav((*game.Replay).Next))
				r.Post("/prev", h.replayNav((*game.Replay).Previous))
				r.Post("/play", h.replayPlay)
				r.Post("/stop", h.replayStop)
				r.Post("/exit", h.exitReplay)
			})
		})
	})

	r.Get("/api/leaderboard", h.leaderboard)
	r.Delete("/api/leaderboard", h.clearLeaderboard)

	r.Get("/ws/games/{id}", h.socket)
	return r
}

// GameSummary is one row of the game list.
type GameSummary struct {
	ID            string       `json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	Phase         string       `json:"phase"`
	CurrentPlayer string       `json:"current_player"`
	Outcome       *OutcomeView `json:"outcome,omitempty"`
}

type createRequest struct {
	Red  string `json:"red"`
	Blue string `json:"blue"`
}

type stepRequest struct {
	Step int `json:"step"`
}

type speedRequest struct {
	Speed string `json:"speed"`
}

type leaderboardResponse struct {
	MaxEntries int                 `json:"max_entries"`
	Entries    []leaderboard.Entry `json:"entries"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) createGame(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(body) > 0 {
		if err := decodeBody(body, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}

	session, err := h.srv.CreateGame(map[game.Player]string{game.Red: req.Red, game.Blue: req.Blue})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.srv.view(session))
}

func (h *handlers) listGames(w http.ResponseWriter, r *http.Request) {
	sessions := h.srv.manager.ListGames()
	out := make([]GameSummary, 0, len(sessions))
	for _, s := range sessions {
		st := s.View()
		v := newGameView(s.ID, st)
		out = append(out, GameSummary{
			ID:            s.ID,
			CreatedAt:     s.CreatedAt,
			Phase:         v.Phase,
			CurrentPlayer: v.CurrentPlayer,
			Outcome:       v.Outcome,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getGame(w http.ResponseWriter, r *http.Request) {
	view, err := h.srv.View(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) removeGame(w http.ResponseWriter, r *http.Request) {
	if err := h.srv.RemoveGame(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) checksum(w http.ResponseWriter, r *http.Request) {
	session, err := h.srv.Game(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	sum, err := session.Checksum()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checksum": sum})
}

// command runs a game command and answers with the resulting view. Rejected
// moves still change the status line, so clients are updated either way.
func (h *handlers) command(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		session, err := h.srv.Game(id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		body, err := readBody(r)
		if err != nil {
			h.writeError(w, err)
			return
		}

		err = applyCommand(session, name, body)
		if err == nil || game.IsInvalidAction(err) {
			h.srv.BroadcastState(id)
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.srv.view(session))
	}
}

func (h *handlers) startReplay(w http.ResponseWriter, r *http.Request) {
	replay, err := h.srv.StartReplay(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReplayView(replay, replay.CurrentIndex(), replay.Current()))
}

func (h *handlers) activeReplay(w http.ResponseWriter, r *http.Request) (*game.Replay, bool) {
	session, err := h.srv.Game(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	replay, err := session.Replay()
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return replay, true
}

func (h *handlers) replayState(w http.ResponseWriter, r *http.Request) {
	replay, ok := h.activeReplay(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newReplayView(replay, replay.CurrentIndex(), replay.Current()))
}

func (h *handlers) replayStep(w http.ResponseWriter, r *http.Request) {
	replay, ok := h.activeReplay(w, r)
	if !ok {
		return
	}
	var req stepRequest
	body, err := readBody(r)
	if err == nil {
		err = decodeBody(body, &req)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	st := replay.JumpTo(req.Step)
	writeJSON(w, http.StatusOK, newReplayView(replay, replay.CurrentIndex(), st))
}

func (h *handlers) replayNav(move func(*game.Replay) *game.GameState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		replay, ok := h.activeReplay(w, r)
		if !ok {
			return
		}
		st := move(replay)
		writeJSON(w, http.StatusOK, newReplayView(replay, replay.CurrentIndex(), st))
	}
}

func (h *handlers) replayPlay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req speedRequest
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(body) > 0 {
		if err := decodeBody(body, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}
	var speed time.Duration
	if req.Speed != "" {
		if speed, err = game.ParseSpeed(req.Speed); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if err := h.srv.Autoplay(id, speed); err != nil {
		h.writeError(w, err)
		return
	}
	h.replayState(w, r)
}

func (h *handlers) replayStop(w http.ResponseWriter, r *http.Request) {
	replay, ok := h.activeReplay(w, r)
	if !ok {
		return
	}
	replay.StopAutoplay()
	writeJSON(w, http.StatusOK, newReplayView(replay, replay.CurrentIndex(), replay.Current()))
}

func (h *handlers) exitReplay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.srv.ExitReplay(id); err != nil {
		h.writeError(w, err)
		return
	}
	h.getGame(w, r)
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	board := h.srv.board
	if board == nil {
		writeJSON(w, http.StatusOK, leaderboardResponse{Entries: []leaderboard.Entry{}})
		return
	}
	limit := board.MaxEntries()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, errBadRequest)
			return
		}
		limit = n
	}
	entries := board.Top(r.Context(), limit)
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{MaxEntries: board.MaxEntries(), Entries: entries})
}

func (h *handlers) clearLeaderboard(w http.ResponseWriter, r *http.Request) {
	if err := h.srv.CheckAdmin(r.Header.Get(AdminPasswordHeader)); err != nil {
		h.logger.Warn("rejected leaderboard clear", zap.String("remote_addr", r.RemoteAddr))
		h.writeError(w, err)
		return
	}
	if h.srv.board == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.srv.board.Clear(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("leaderboard cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) socket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.srv.View(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	client, err := h.srv.hub.Attach(w, r, id, newMessage(msgGameState, id, view))
	if err != nil {
		// the upgrader has already answered the request
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.srv.hub.Serve(client, h.srv.handleSocket)
}

// handleSocket applies a command received over a websocket.
func (s *Server) handleSocket(c *Client, msg WSMessage) {
	session, err := s.Game(c.GameID)
	if err != nil {
		s.hub.Reply(c, newMessage(msgError, c.GameID, newErrorBody(err)))
		return
	}
	if msg.Type == msgGameState {
		s.hub.Reply(c, newMessage(msgGameState, c.GameID, s.view(session)))
		return
	}

	err = applyCommand(session, msg.Type, msg.Data)
	if err == nil || game.IsInvalidAction(err) {
		s.BroadcastState(c.GameID)
	}
	if err != nil {
		s.hub.Reply(c, newMessage(msgError, c.GameID, newErrorBody(err)))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, newErrorBody(err))
}

func httpStatus(err error) int {
	switch {
	case game.IsInvalidAction(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrGameEnded),
		errors.Is(err, game.ErrPaused),
		errors.Is(err, game.ErrReplayActive),
		errors.Is(err, game.ErrNoReplay):
		return http.StatusConflict
	case errors.Is(err, errBadRequest), errors.Is(err, game.ErrUnknownSpeed):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTooManyGames):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Join(errBadRequest, err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
