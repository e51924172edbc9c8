package match

import "github.com/cbodonnell/rally/pkg/game"

// practiceInputLocked computes the scripted opponent's input for the
// next tick. The opponent tracks the ball while it approaches and
// drifts back to center otherwise; the deadzone keeps it from
// oscillating around the target.
func (m *Match) practiceInputLocked() game.Input {
	target := m.geo.CanvasHeight / 2
	if m.state.Ball.VX > 0 {
		target = m.state.Ball.Y
	}
	center := m.state.RightPaddleY + m.geo.PaddleHeight/2
	switch {
	case target < center-m.geo.PaddleSpeed:
		return game.Input{Up: true}
	case target > center+m.geo.PaddleSpeed:
		return game.Input{Down: true}
	default:
		return game.Input{}
	}
}
