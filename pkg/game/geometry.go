package game

import "time"

// Geometry holds the board dimensions and motion constants for a match.
// Everything the simulation needs to know about sizes and speeds lives
// here so that nothing is hard-coded in the step function.
type Geometry struct {
	CanvasWidth   float64
	CanvasHeight  float64
	PaddleWidth   float64
	PaddleHeight  float64
	PaddleSpeed   float64
	BallRadius    float64
	BallBaseSpeed float64
	// MaxBallVY clamps the vertical speed after paddle spin is applied.
	MaxBallVY float64
	// ServeMaxVY bounds the random vertical speed on a serve.
	ServeMaxVY       float64
	MaxScore         int
	TickInterval     time.Duration
	CountdownSeconds int
}

// DefaultGeometry returns the standard board used by ranked matches.
func DefaultGeometry() Geometry {
	return Geometry{
		CanvasWidth:      800,
		CanvasHeight:     600,
		PaddleWidth:      15,
		PaddleHeight:     100,
		PaddleSpeed:      8,
		BallRadius:       10,
		BallBaseSpeed:    5,
		MaxBallVY:        8,
		ServeMaxVY:       3,
		MaxScore:         5,
		TickInterval:     16 * time.Millisecond,
		CountdownSeconds: 3,
	}
}

// NewState returns the initial simulation state for a geometry: paddles
// centered, ball served from the middle toward the left player.
func NewState(geo Geometry) State {
	centerPaddleY := geo.CanvasHeight/2 - geo.PaddleHeight/2
	return State{
		Ball: Ball{
			X:      geo.CanvasWidth / 2,
			Y:      geo.CanvasHeight / 2,
			VX:     -geo.BallBaseSpeed,
			VY:     2,
			Radius: geo.BallRadius,
		},
		LeftPaddleY:  centerPaddleY,
		RightPaddleY: centerPaddleY,
	}
}
