package app

import "bytes"

// changeGate remembers the last frame that passed and rejects identical ones.
// It is owned by a single Dispatcher and used from its consumer goroutine only.
type changeGate struct {
	previous []byte
	primed   bool
}

// changed reports whether data differs from the previous frame that passed.
// On a change the snapshot is replaced; an unchanged frame leaves it as is.
// The first frame after a reset always passes.
func (g *changeGate) changed(data []byte) bool {
	if g.primed && bytes.Equal(g.previous, data) {
		return false
	}
	g.previous = append(g.previous[:0], data...)
	g.primed = true
	return true
}

func (g *changeGate) reset() {
	g.previous = g.previous[:0]
	g.primed = false
}
