package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/game/board"
)

// Game commands accepted over HTTP and websocket.
const (
	cmdClick  = "click"
	cmdPlace  = "place"
	cmdMove   = "move"
	cmdUndo   = "undo"
	cmdRedo   = "redo"
	cmdPause  = "pause"
	cmdResume = "resume"
	cmdReset  = "reset"
)

var errBadRequest = errors.New("bad request")

type nodeRequest struct {
	Node string `json:"node"`
}

type moveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func newErrorBody(err error) errorBody {
	var invalid *game.InvalidActionError
	if errors.As(err, &invalid) {
		return errorBody{Error: invalid.Message, Reason: invalid.Reason.Error()}
	}
	return errorBody{Error: err.Error()}
}

// applyCommand runs one named command with its JSON arguments.
func applyCommand(session *game.Session, name string, body []byte) error {
	switch name {
	case cmdClick, cmdPlace:
		var req nodeRequest
		if err := decodeBody(body, &req); err != nil {
			return err
		}
		n, err := parseNode(req.Node)
		if err != nil {
			return err
		}
		if name == cmdClick {
			return session.Click(n)
		}
		return session.Place(n)

	case cmdMove:
		var req moveRequest
		if err := decodeBody(body, &req); err != nil {
			return err
		}
		from, err := parseNode(req.From)
		if err != nil {
			return err
		}
		to, err := parseNode(req.To)
		if err != nil {
			return err
		}
		return session.Move(from, to)

	case cmdUndo:
		_, err := session.Undo()
		return err
	case cmdRedo:
		_, err := session.Redo()
		return err
	case cmdPause:
		return session.Pause()
	case cmdResume:
		return session.Resume()
	case cmdReset:
		session.Reset()
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errBadRequest, name)
}

func decodeBody(body []byte, v any) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: missing body", errBadRequest)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func parseNode(s string) (board.Node, error) {
	n, err := board.ParseNode(s)
	if err != nil {
		return board.Node{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return n, nil
}
