package game

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeometry() Geometry {
	return DefaultGeometry()
}

func TestStep_Deterministic(t *testing.T) {
	geo := testGeometry()
	state := NewState(geo)
	inputs := Inputs{Left: Input{Down: true}, Right: Input{Up: true}}

	run := func(seed int64) []State {
		rng := rand.New(rand.NewSource(seed))
		s := state
		var states []State
		for i := 0; i < 500; i++ {
			s, _ = Step(s, inputs, geo, rng)
			states = append(states, s)
		}
		return states
	}

	assert.Equal(t, run(42), run(42), "identical seeds must produce identical trajectories")
}

func TestStep_PaddleMovement(t *testing.T) {
	geo := testGeometry()
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name   string
		input  Input
		startY float64
		wantY  float64
	}{
		{"up moves up", Input{Up: true}, 300, 300 - geo.PaddleSpeed},
		{"down moves down", Input{Down: true}, 300, 300 + geo.PaddleSpeed},
		{"both held cancels", Input{Up: true, Down: true}, 300, 300},
		{"neither holds still", Input{}, 300, 300},
		{"clamped at top", Input{Up: true}, 2, 0},
		{"clamped at bottom", Input{Down: true}, geo.CanvasHeight - geo.PaddleHeight - 2, geo.CanvasHeight - geo.PaddleHeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState(geo)
			state.LeftPaddleY = tt.startY
			// Park the ball mid-air so it cannot interfere.
			state.Ball = Ball{X: geo.CanvasWidth / 2, Y: geo.CanvasHeight / 2, VX: 0, VY: 0, Radius: geo.BallRadius}
			next, _ := Step(state, Inputs{Left: tt.input}, geo, rng)
			assert.Equal(t, tt.wantY, next.LeftPaddleY)
		})
	}
}

func TestStep_WallBounce(t *testing.T) {
	geo := testGeometry()
	rng := rand.New(rand.NewSource(1))

	state := NewState(geo)
	state.Ball = Ball{X: 400, Y: geo.BallRadius + 1, VX: 0, VY: -3, Radius: geo.BallRadius}

	next, _ := Step(state, Inputs{}, geo, rng)
	assert.Equal(t, 3.0, next.Ball.VY, "ball should bounce off the top wall")

	state.Ball = Ball{X: 400, Y: geo.CanvasHeight - geo.BallRadius - 1, VX: 0, VY: 3, Radius: geo.BallRadius}
	next, _ = Step(state, Inputs{}, geo, rng)
	assert.Equal(t, -3.0, next.Ball.VY, "ball should bounce off the bottom wall")
}

func TestStep_PaddleDeflectionBeatsScoring(t *testing.T) {
	geo := testGeometry()
	rng := rand.New(rand.NewSource(1))

	// Ball at (10, 300) moving left at 5 with the left paddle covering
	// 250..350: one tick moves the ball to x=5, inside the paddle's
	// x-range, so it deflects instead of scoring.
	state := NewState(geo)
	state.Ball = Ball{X: 10, Y: 300, VX: -5, VY: 0, Radius: geo.BallRadius}
	state.LeftPaddleY = 250

	next, res := Step(state, Inputs{}, geo, rng)
	assert.Equal(t, SideLeft, res.PaddleHit)
	assert.Equal(t, SideNone, res.Scorer)
	assert.Equal(t, 5.0, next.Ball.VX, "deflection inverts the horizontal speed")
	assert.Equal(t, 0, next.RightScore)
}

func TestStep_SpinClamped(t *testing.T) {
	geo := testGeometry()
	rng := rand.New(rand.NewSource(7))

	state := NewState(geo)
	state.LeftPaddleY = 250
	state.Ball = Ball{X: 10, Y: 300, VX: -5, VY: geo.MaxBallVY, Radius: geo.BallRadius}

	for i := 0; i < 100; i++ {
		next, res := Step(state, Inputs{}, geo, rng)
		require.Equal(t, SideLeft, res.PaddleHit)
		assert.LessOrEqual(t, math.Abs(next.Ball.VY), geo.MaxBallVY)
	}
}

func TestStep_Scoring(t *testing.T) {
	geo := testGeometry()
	rng := rand.New(rand.NewSource(1))

	// Ball crossing the left goal line with no paddle in its path.
	state := NewState(geo)
	state.LeftPaddleY = 0
	state.Ball = Ball{X: 8, Y: 500, VX: -5, VY: 0, Radius: geo.BallRadius}

	next, res := Step(state, Inputs{}, geo, rng)
	assert.Equal(t, SideRight, res.Scorer)
	assert.Equal(t, SideNone, res.Winner)
	assert.Equal(t, 1, next.RightScore)
	assert.Equal(t, 0, next.LeftScore)
	assert.Equal(t, geo.CanvasWidth/2, next.Ball.X, "ball resets to center after a point")
	assert.Equal(t, geo.CanvasHeight/2, next.Ball.Y)
	assert.Equal(t, geo.BallBaseSpeed, math.Abs(next.Ball.VX))
	assert.LessOrEqual(t, math.Abs(next.Ball.VY), geo.ServeMaxVY)
}

func TestStep_ScoreMonotonicity(t *testing.T) {
	geo := testGeometry()
	rng := rand.New(rand.NewSource(99))

	state := NewState(geo)
	for i := 0; i < 5000; i++ {
		next, _ := Step(state, Inputs{}, geo, rng)
		require.GreaterOrEqual(t, next.LeftScore, state.LeftScore)
		require.GreaterOrEqual(t, next.RightScore, state.RightScore)
		gained := (next.LeftScore - state.LeftScore) + (next.RightScore - state.RightScore)
		require.LessOrEqual(t, gained, 1, "at most one point per tick")
		if next.LeftScore >= geo.MaxScore || next.RightScore >= geo.MaxScore {
			break
		}
		state = next
	}
}

func TestStep_WinInsteadOfScore(t *testing.T) {
	geo := testGeometry()
	rng := rand.New(rand.NewSource(1))

	state := NewState(geo)
	state.LeftScore = geo.MaxScore - 1
	state.RightPaddleY = 0
	state.Ball = Ball{X: geo.CanvasWidth - 8, Y: 500, VX: 5, VY: 0, Radius: geo.BallRadius}

	next, res := Step(state, Inputs{}, geo, rng)
	assert.Equal(t, SideLeft, res.Winner)
	assert.Equal(t, SideNone, res.Scorer, "a winning point is reported as a win, not a score")
	assert.Equal(t, geo.MaxScore, next.LeftScore)
}
