// Package notation parses and runs plain-text game scripts such as
//
//	place outer-0
//	place outer-3
//	move outer-0 outer-1   # comments run to the end of the line
//	undo
//
// Commands may be separated by newlines or semicolons.
package notation

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/tia-game/titans-server-go/internal/game/board"
)

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Node", Pattern: `[a-z]+-[0-9]+`},
	{Name: "Keyword", Pattern: `[a-z]+`},
	{Name: "Whitespace", Pattern: `[ \t\r\n;]+`},
})

var scriptParser = participle.MustBuild[Script](
	participle.Lexer(scriptLexer),
	participle.Elide("Comment", "Whitespace"),
)

// Script is a parsed sequence of commands.
type Script struct {
	Commands []*Command `@@*`
}

// Command is one script line. Exactly one field is set.
type Command struct {
	Pos lexer.Position

	Place  *NodeRef  `  "place" @@`
	Move   *MoveArgs `| "move" @@`
	Click  *NodeRef  `| "click" @@`
	Undo   bool      `| @"undo"`
	Redo   bool      `| @"redo"`
	Expire string    `| "expire" @("turn" | "game")`
	Pause  bool      `| @"pause"`
	Resume bool      `| @"resume"`
	Reset  bool      `| @"reset"`
}

type MoveArgs struct {
	From *NodeRef `@@`
	To   *NodeRef `@@`
}

// NodeRef is a node id as written in a script.
type NodeRef struct {
	ID string `@Node`
}

// Node resolves the reference against the board's naming scheme.
func (r *NodeRef) Node() (board.Node, error) {
	return board.ParseNode(r.ID)
}

func (c *Command) String() string {
	switch {
	case c.Place != nil:
		return "place " + c.Place.ID
	case c.Move != nil:
		return fmt.Sprintf("move %s %s", c.Move.From.ID, c.Move.To.ID)
	case c.Click != nil:
		return "click " + c.Click.ID
	case c.Undo:
		return "undo"
	case c.Redo:
		return "redo"
	case c.Expire != "":
		return "expire " + c.Expire
	case c.Pause:
		return "pause"
	case c.Resume:
		return "resume"
	case c.Reset:
		return "reset"
	}
	return ""
}

// String renders the script with one command per line.
func (s *Script) String() string {
	lines := make([]string, len(s.Commands))
	for i, c := range s.Commands {
		lines[i] = c.String()
	}
	return strings.Join(lines, "\n")
}

// Parse parses a script. name is used in error positions.
func Parse(name, src string) (*Script, error) {
	script, err := scriptParser.ParseString(name, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for _, c := range script.Commands {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Pos, err)
		}
	}
	return script, nil
}

func (c *Command) validate() error {
	var refs []*NodeRef
	switch {
	case c.Place != nil:
		refs = append(refs, c.Place)
	case c.Click != nil:
		refs = append(refs, c.Click)
	case c.Move != nil:
		refs = append(refs, c.Move.From, c.Move.To)
	}
	for _, r := range refs {
		if _, err := r.Node(); err != nil {
			return err
		}
	}
	return nil
}
