package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pfp-sticker/internal/compose"
	"pfp-sticker/internal/session"
)

// A moves script replays editor interaction, one command per line:
//
//	viewport W H     display size used to map pointer coordinates
//	down X Y         pointer down
//	move X Y         pointer move
//	up | leave       end the drag
//	scale S          change scale around the sticker's centre
//	flip             toggle the mirror
//	anchor NAME      jump to a preset
//	place FX FY      centre on a fractional point
//
// Blank lines and lines starting with # are ignored.
type move struct {
	line int
	op   string
	args []float64
	name string
}

var moveArity = map[string]int{
	"viewport": 2, "down": 2, "move": 2, "up": 0, "leave": 0,
	"scale": 1, "flip": 0, "anchor": 0, "place": 2,
}

func parseMoves(r io.Reader) ([]move, error) {
	var moves []move
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		op := strings.ToLower(fields[0])
		arity, ok := moveArity[op]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown command %q", n, fields[0])
		}

		m := move{line: n, op: op}
		if op == "anchor" {
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: anchor takes a name", n)
			}
			a, ok := compose.ParseAnchor(fields[1])
			if !ok {
				return nil, fmt.Errorf("line %d: unknown anchor %q", n, fields[1])
			}
			m.name = string(a)
			moves = append(moves, m)
			continue
		}

		if len(fields)-1 != arity {
			return nil, fmt.Errorf("line %d: %s takes %d arguments, got %d", n, op, arity, len(fields)-1)
		}
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q", n, f)
			}
			m.args = append(m.args, v)
		}
		moves = append(moves, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read moves: %w", err)
	}
	return moves, nil
}

func applyMoves(s *session.Session, moves []move) {
	for _, m := range moves {
		switch m.op {
		case "viewport":
			s.SetViewport(compose.Viewport{Width: int(m.args[0]), Height: int(m.args[1])})
		case "down":
			s.PointerDown(m.args[0], m.args[1])
		case "move":
			s.PointerMove(m.args[0], m.args[1])
		case "up":
			s.PointerUp()
		case "leave":
			s.PointerLeave()
		case "scale":
			s.ChangeScale(m.args[0])
		case "flip":
			s.ToggleFlip()
		case "anchor":
			s.SetAnchor(compose.Anchor(m.name))
		case "place":
			s.PlaceAt(m.args[0], m.args[1])
		}
	}
}
