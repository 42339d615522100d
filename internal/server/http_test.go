package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tia-game/titans-server-go/internal/game"
	"golang.org/x/crypto/bcrypt"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newAPI(t *testing.T, srv *Server) *apiClient {
	return &apiClient{t: t, handler: srv.Handler()}
}

func (c *apiClient) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (c *apiClient) create() GameView {
	c.t.Helper()
	rr := c.do(http.MethodPost, "/api/games", map[string]string{"red": "Ann", "blue": "Bob"})
	require.Equal(c.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[GameView](c.t, rr)
}

func (c *apiClient) click(id, n string) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, "/api/games/"+id+"/click", nodeRequest{Node: n})
}

func TestHTTPPlacementFlow(t *testing.T) {
	api := newAPI(t, newTestServer(t, Options{}, nil))
	created := api.create()
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Ann", created.Players["red"].Name)
	assert.Equal(t, "Bob", created.Players["blue"].Name)

	rr := api.click(created.ID, "outer-0")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	view := decode[GameView](t, rr)
	assert.Equal(t, "red", view.Board["outer-0"])
	assert.Equal(t, "blue", view.CurrentPlayer)
	assert.Equal(t, 1, view.UndoDepth)
	assert.Equal(t, 3, view.Players["red"].TitansRemaining)
	require.Len(t, view.Players["red"].Moves, 1)
	assert.Equal(t, "Placed titan at outer-0", view.Players["red"].Moves[0].Description)

	rr = api.do(http.MethodPost, "/api/games/"+created.ID+"/place", nodeRequest{Node: "outer-3"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = api.click(created.ID, "outer-1")
	require.Equal(t, http.StatusOK, rr.Code)
	view = decode[GameView](t, rr)
	assert.Equal(t, 2, view.Players["red"].Score)
	assert.Equal(t, []string{"outer-0-outer-1"}, view.Controlled["red"])

	rr = api.do(http.MethodPost, "/api/games/"+created.ID+"/undo", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view = decode[GameView](t, rr)
	assert.Empty(t, view.Board["outer-1"])
	assert.Equal(t, 1, view.RedoDepth)

	rr = api.do(http.MethodPost, "/api/games/"+created.ID+"/redo", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "red", decode[GameView](t, rr).Board["outer-1"])

	rr = api.do(http.MethodGet, "/api/games/"+created.ID+"/checksum", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string]string](t, rr)["checksum"], 64)
}

func TestHTTPRejectedActions(t *testing.T) {
	api := newAPI(t, newTestServer(t, Options{}, nil))
	id := api.create().ID

	rr := api.click(id, "middle-0")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[errorBody](t, rr)
	assert.Equal(t, "Invalid placement. Select an empty node on an unlocked circuit.", body.Error)
	assert.Equal(t, game.ErrCircuitLocked.Error(), body.Reason)

	// the rejection is reflected in the status line
	rr = api.do(http.MethodGet, "/api/games/"+id, nil)
	assert.Equal(t, body.Error, decode[GameView](t, rr).Status)

	rr = api.do(http.MethodPost, "/api/games/"+id+"/move", moveRequest{From: "outer-0", To: "outer-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, game.ErrWrongPhase.Error(), decode[errorBody](t, rr).Reason)

	assert.Equal(t, http.StatusBadRequest, api.click(id, "nowhere").Code)
	assert.Equal(t, http.StatusBadRequest, api.click(id, "outer-6").Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/games/"+id+"/click", nil).Code)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/games/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.click("missing", "outer-0").Code)
}

func TestHTTPPauseAndEnd(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)
	api := newAPI(t, srv)
	id := api.create().ID

	rr := api.do(http.MethodPost, "/api/games/"+id+"/pause", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[GameView](t, rr).Paused)
	assert.Equal(t, http.StatusConflict, api.click(id, "outer-0").Code)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/games/"+id+"/resume", nil).Code)
	for _, n := range []string{"outer-0", "outer-3", "outer-1"} {
		require.Equal(t, http.StatusOK, api.click(id, n).Code)
	}

	s, err := srv.Game(id)
	require.NoError(t, err)
	require.NoError(t, s.ExpireGame())

	rr = api.do(http.MethodGet, "/api/games/"+id, nil)
	view := decode[GameView](t, rr)
	assert.Equal(t, "ENDED", view.Phase)
	require.NotNil(t, view.Outcome)
	assert.Equal(t, "red", view.Outcome.Winner)
	assert.Equal(t, "game_timer", view.Outcome.Reason)

	assert.Equal(t, http.StatusConflict, api.click(id, "outer-2").Code)
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/games/"+id+"/undo", nil).Code)

	rr = api.do(http.MethodPost, "/api/games/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view = decode[GameView](t, rr)
	assert.Equal(t, "PLACEMENT", view.Phase)
	assert.Nil(t, view.Outcome)
}

func TestHTTPListAndDelete(t *testing.T) {
	api := newAPI(t, newTestServer(t, Options{}, nil))
	a := api.create()
	b := api.create()

	rr := api.do(http.MethodGet, "/api/games", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	games := decode[[]GameSummary](t, rr)
	require.Len(t, games, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{games[0].ID, games[1].ID})

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/games/"+a.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/api/games/"+a.ID, nil).Code)
	assert.Len(t, decode[[]GameSummary](t, api.do(http.MethodGet, "/api/games", nil)), 1)
}

func TestHTTPTooManyGames(t *testing.T) {
	api := newAPI(t, newTestServer(t, Options{MaxGames: 1}, nil))
	api.create()
	rr := api.do(http.MethodPost, "/api/games", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHTTPReplay(t *testing.T) {
	api := newAPI(t, newTestServer(t, Options{}, nil))
	id := api.create().ID
	for _, n := range []string{"outer-0", "outer-3", "outer-1"} {
		require.Equal(t, http.StatusOK, api.click(id, n).Code)
	}
	base := "/api/games/" + id + "/replay"

	assert.Equal(t, http.StatusConflict, api.do(http.MethodGet, base, nil).Code)

	rr := api.do(http.MethodPost, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rv := decode[ReplayView](t, rr)
	assert.Equal(t, 0, rv.Step)
	assert.Equal(t, 3, rv.Total)
	require.NotNil(t, rv.State)
	assert.Empty(t, rv.State.Board["outer-0"])

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, base, nil).Code)
	assert.Equal(t, http.StatusConflict, api.click(id, "outer-4").Code)

	rr = api.do(http.MethodPost, base+"/next", nil)
	rv = decode[ReplayView](t, rr)
	assert.Equal(t, 1, rv.Step)
	assert.Equal(t, "red", rv.State.Board["outer-0"])

	rr = api.do(http.MethodPost, base+"/step", stepRequest{Step: 100})
	assert.Equal(t, 3, decode[ReplayView](t, rr).Step)
	rr = api.do(http.MethodPost, base+"/prev", nil)
	assert.Equal(t, 2, decode[ReplayView](t, rr).Step)
	rr = api.do(http.MethodPost, base+"/first", nil)
	assert.Equal(t, 0, decode[ReplayView](t, rr).Step)
	rr = api.do(http.MethodPost, base+"/last", nil)
	assert.Equal(t, 3, decode[ReplayView](t, rr).Step)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, base+"/play", speedRequest{Speed: "ludicrous"}).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, base+"/play", speedRequest{Speed: "slow"}).Code)
	rr = api.do(http.MethodPost, base+"/stop", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[ReplayView](t, rr).Playing)

	rr = api.do(http.MethodPost, base+"/exit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[GameView](t, rr)
	assert.False(t, view.Replaying)
	assert.Equal(t, "red", view.Board["outer-1"])
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, base+"/exit", nil).Code)

	require.Equal(t, http.StatusOK, api.click(id, "outer-4").Code)
}

func TestHTTPLeaderboard(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	srv := newTestServer(t, Options{AdminPasswordHash: string(hash)}, nil)
	api := newAPI(t, srv)

	rr := api.do(http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[leaderboardResponse](t, rr)
	assert.Equal(t, 10, resp.MaxEntries)
	assert.Empty(t, resp.Entries)

	s, err := srv.CreateGame(map[game.Player]string{game.Red: "Ann"})
	require.NoError(t, err)
	place(t, s, "outer-0", "outer-3", "outer-1")
	require.NoError(t, s.ExpireGame())

	resp = decode[leaderboardResponse](t, api.do(http.MethodGet, "/api/leaderboard?limit=5", nil))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Ann", resp.Entries[0].PlayerName)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/leaderboard?limit=x", nil).Code)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodDelete, "/api/leaderboard", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		api.do(http.MethodDelete, "/api/leaderboard", nil, AdminPasswordHeader, "guess").Code)
	assert.Equal(t, http.StatusNoContent,
		api.do(http.MethodDelete, "/api/leaderboard", nil, AdminPasswordHeader, "secret").Code)

	resp = decode[leaderboardResponse](t, api.do(http.MethodGet, "/api/leaderboard", nil))
	assert.Empty(t, resp.Entries)
}

func TestHealthz(t *testing.T) {
	api := newAPI(t, newTestServer(t, Options{}, nil))
	rr := api.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		game.ErrGameNotFound: http.StatusNotFound,
		game.ErrGameEnded:    http.StatusConflict,
		game.ErrReplayActive: http.StatusConflict,
		errBadRequest:        http.StatusBadRequest,
		ErrUnauthorized:      http.StatusUnauthorized,
		assert.AnError:       http.StatusInternalServerError,
	}
	for err, code := range cases {
		assert.Equal(t, code, httpStatus(err), err.Error())
	}
}
