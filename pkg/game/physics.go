package game

import (
	"math"
	"math/rand"
)

// Side identifies one of the two seats in a match.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "none"
	}
}

// Ball is the ball's position and velocity in canvas coordinates.
type Ball struct {
	X      float64
	Y      float64
	VX     float64
	VY     float64
	Radius float64
}

// State is the full simulation state for one tick. It is a value type:
// Step returns a new State rather than mutating its input.
type State struct {
	Ball         Ball
	LeftPaddleY  float64
	RightPaddleY float64
	LeftScore    int
	RightScore   int
}

// Input is one paddle's held directions. Up and down held together
// cancel out: the paddle does not move. This tie-break is deliberate
// so that the simulation does not depend on evaluation order.
type Input struct {
	Up   bool
	Down bool
}

// Inputs holds both paddle input vectors for a tick.
type Inputs struct {
	Left  Input
	Right Input
}

// Result reports what happened during a step. Scorer and Winner are
// mutually exclusive outcomes: a point that reaches the score limit
// reports only Winner.
type Result struct {
	// Scorer is the side that scored this tick, or SideNone.
	Scorer Side
	// Winner is the side that reached the score limit this tick, or SideNone.
	Winner Side
	// PaddleHit is the side whose paddle deflected the ball this tick.
	PaddleHit Side
}

// Step advances the simulation by one fixed tick. It is deterministic
// for a given (state, inputs, rng sequence): all randomness (spin and
// serve direction) is drawn from the provided rng.
func Step(s State, in Inputs, geo Geometry, rng *rand.Rand) (State, Result) {
	var res Result

	s.LeftPaddleY = movePaddle(s.LeftPaddleY, in.Left, geo)
	s.RightPaddleY = movePaddle(s.RightPaddleY, in.Right, geo)

	s.Ball.X += s.Ball.VX
	s.Ball.Y += s.Ball.VY

	// Wall bounce (top and bottom).
	if s.Ball.Y-s.Ball.Radius <= 0 || s.Ball.Y+s.Ball.Radius >= geo.CanvasHeight {
		s.Ball.VY = -s.Ball.VY
	}

	// Paddle deflection takes precedence over scoring: a ball caught at
	// the goal line by a paddle is still in play.
	if hitsLeftPaddle(s, geo) {
		s.Ball.VX = math.Abs(s.Ball.VX)
		s.Ball.VY = applySpin(s.Ball.VY, geo, rng)
		res.PaddleHit = SideLeft
	} else if hitsRightPaddle(s, geo) {
		s.Ball.VX = -math.Abs(s.Ball.VX)
		s.Ball.VY = applySpin(s.Ball.VY, geo, rng)
		res.PaddleHit = SideRight
	} else if s.Ball.X-s.Ball.Radius <= 0 {
		s.RightScore++
		res.Scorer = SideRight
	} else if s.Ball.X+s.Ball.Radius >= geo.CanvasWidth {
		s.LeftScore++
		res.Scorer = SideLeft
	}

	if res.Scorer != SideNone {
		if s.LeftScore >= geo.MaxScore {
			res.Winner = SideLeft
			res.Scorer = SideNone
		} else if s.RightScore >= geo.MaxScore {
			res.Winner = SideRight
			res.Scorer = SideNone
		} else {
			s.Ball = serve(geo, rng)
		}
	}

	return s, res
}

func movePaddle(y float64, in Input, geo Geometry) float64 {
	if in.Up == in.Down {
		return y
	}
	if in.Up {
		y -= geo.PaddleSpeed
	} else {
		y += geo.PaddleSpeed
	}
	return clamp(y, 0, geo.CanvasHeight-geo.PaddleHeight)
}

func hitsLeftPaddle(s State, geo Geometry) bool {
	return s.Ball.VX < 0 &&
		s.Ball.X-s.Ball.Radius <= geo.PaddleWidth &&
		s.Ball.Y >= s.LeftPaddleY &&
		s.Ball.Y <= s.LeftPaddleY+geo.PaddleHeight
}

func hitsRightPaddle(s State, geo Geometry) bool {
	return s.Ball.VX > 0 &&
		s.Ball.X+s.Ball.Radius >= geo.CanvasWidth-geo.PaddleWidth &&
		s.Ball.Y >= s.RightPaddleY &&
		s.Ball.Y <= s.RightPaddleY+geo.PaddleHeight
}

// applySpin perturbs the vertical speed on a paddle hit, clamped so the
// ball never becomes effectively horizontal-proof to return.
func applySpin(vy float64, geo Geometry, rng *rand.Rand) float64 {
	vy += rng.Float64()*2 - 1
	return clamp(vy, -geo.MaxBallVY, geo.MaxBallVY)
}

// serve resets the ball to the canvas center with a randomized direction.
func serve(geo Geometry, rng *rand.Rand) Ball {
	vx := geo.BallBaseSpeed
	if rng.Intn(2) == 0 {
		vx = -vx
	}
	return Ball{
		X:      geo.CanvasWidth / 2,
		Y:      geo.CanvasHeight / 2,
		VX:     vx,
		VY:     rng.Float64()*2*geo.ServeMaxVY - geo.ServeMaxVY,
		Radius: geo.BallRadius,
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
