package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialGame(t *testing.T, ts *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/games/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(WSMessage) bool) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, kind string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(WSMessage{Type: kind, Data: raw}))
}

func TestSocketPlaysGame(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)
	s, err := srv.CreateGame(nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	conn := dialGame(t, ts, s.ID)

	first := readUntil(t, conn, func(WSMessage) bool { return true })
	require.Equal(t, msgGameState, first.Type)
	assert.Equal(t, s.ID, first.GameID)

	send(t, conn, cmdClick, nodeRequest{Node: "outer-0"})

	evt := readUntil(t, conn, func(m WSMessage) bool { return m.Type == msgEvent })
	var ev EventView
	require.NoError(t, json.Unmarshal(evt.Data, &ev))
	assert.Equal(t, "TITAN_PLACED", ev.Type)
	assert.Equal(t, "outer-0", ev.Node)

	state := readUntil(t, conn, func(m WSMessage) bool { return m.Type == msgGameState })
	var view GameView
	require.NoError(t, json.Unmarshal(state.Data, &view))
	assert.Equal(t, "red", view.Board["outer-0"])
	assert.Equal(t, "blue", view.CurrentPlayer)

	send(t, conn, cmdClick, nodeRequest{Node: "middle-0"})
	reply := readUntil(t, conn, func(m WSMessage) bool { return m.Type == msgError })
	var body errorBody
	require.NoError(t, json.Unmarshal(reply.Data, &body))
	assert.Equal(t, "circuit is locked", body.Reason)

	send(t, conn, "dance", nil)
	reply = readUntil(t, conn, func(m WSMessage) bool { return m.Type == msgError })
	require.NoError(t, json.Unmarshal(reply.Data, &body))
	assert.Contains(t, body.Error, "unknown command")
}

func TestSocketSeesOtherTransports(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)
	s, err := srv.CreateGame(nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	watcher := dialGame(t, ts, s.ID)
	readUntil(t, watcher, func(m WSMessage) bool { return m.Type == msgGameState })

	resp, err := http.Post(ts.URL+"/api/games/"+s.ID+"/click", "application/json", strings.NewReader(`{"node":"outer-2"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := readUntil(t, watcher, func(m WSMessage) bool { return m.Type == msgGameState })
	var view GameView
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, "red", view.Board["outer-2"])
}

func TestSocketUnknownGame(t *testing.T) {
	srv := newTestServer(t, Options{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/games/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubRoutesByGame(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	a := &Client{ID: "a", GameID: "g1", send: make(chan []byte, 4)}
	b := &Client{ID: "b", GameID: "g2", send: make(chan []byte, 4)}
	hub.register <- a
	hub.register <- b

	hub.Broadcast("g1", []byte("one"))
	hub.Reply(b, []byte("two"))

	select {
	case got := <-a.send:
		assert.Equal(t, "one", string(got))
	case <-time.After(time.Second):
		t.Fatal("client a got nothing")
	}
	select {
	case got := <-b.send:
		assert.Equal(t, "two", string(got))
	case <-time.After(time.Second):
		t.Fatal("client b got nothing")
	}
	assert.Empty(t, a.send)
}
