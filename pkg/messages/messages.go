package messages

// Frame types exchanged over the game connection. Inbound frames carry
// only player input; everything else flows server to client.
const (
	FrameTypeInput = "input"

	FrameTypeSuccess       = "success"
	FrameTypeWaiting       = "waiting"
	FrameTypeReady         = "ready"
	FrameTypeCountdown     = "countdown"
	FrameTypeGameStart     = "game-start"
	FrameTypeGameState     = "game-state"
	FrameTypeGameOver      = "game-over"
	FrameTypeGameAbandoned = "game-abandoned"
	FrameTypeError         = "error"
)

// Input frame field values.
const (
	InputTypeKeyDown = "keydown"
	InputTypeKeyUp   = "keyup"

	InputKeyUp   = "up"
	InputKeyDown = "down"
)

// InputFrame is the only frame clients are expected to send while a
// match is in progress.
type InputFrame struct {
	Type      string `json:"type"`
	InputType string `json:"inputType"`
	Key       string `json:"key"`
}

// Valid reports whether the frame is a well-formed input frame.
func (f *InputFrame) Valid() bool {
	if f.Type != FrameTypeInput {
		return false
	}
	if f.InputType != InputTypeKeyDown && f.InputType != InputTypeKeyUp {
		return false
	}
	return f.Key == InputKeyUp || f.Key == InputKeyDown
}

// SuccessFrame confirms a join and tells the client which seat it holds.
type SuccessFrame struct {
	Type            string `json:"type"`
	PlayerNumber    int    `json:"playerNumber"`
	Player1Username string `json:"player1Username"`
	Player2Username string `json:"player2Username"`
}

func NewSuccessFrame(playerNumber int, p1, p2 string) *SuccessFrame {
	return &SuccessFrame{
		Type:            FrameTypeSuccess,
		PlayerNumber:    playerNumber,
		Player1Username: p1,
		Player2Username: p2,
	}
}

// WaitingFrame is sent while a match has a single connected player.
type WaitingFrame struct {
	Type             string `json:"type"`
	ConnectedPlayers int    `json:"connectedPlayers"`
}

func NewWaitingFrame(connectedPlayers int) *WaitingFrame {
	return &WaitingFrame{
		Type:             FrameTypeWaiting,
		ConnectedPlayers: connectedPlayers,
	}
}

// ReadyFrame announces that the second player joined.
type ReadyFrame struct {
	Type            string `json:"type"`
	Player1Username string `json:"player1Username"`
	Player2Username string `json:"player2Username"`
}

func NewReadyFrame(p1, p2 string) *ReadyFrame {
	return &ReadyFrame{
		Type:            FrameTypeReady,
		Player1Username: p1,
		Player2Username: p2,
	}
}

// CountdownFrame carries one second of the pre-game countdown.
type CountdownFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func NewCountdownFrame(count int) *CountdownFrame {
	return &CountdownFrame{
		Type:  FrameTypeCountdown,
		Count: count,
	}
}

// GameStartFrame marks the end of the countdown.
type GameStartFrame struct {
	Type string `json:"type"`
}

func NewGameStartFrame() *GameStartFrame {
	return &GameStartFrame{Type: FrameTypeGameStart}
}

// GameStateFrame is the per-tick state broadcast.
type GameStateFrame struct {
	Type            string  `json:"type"`
	BallX           float64 `json:"ballX"`
	BallY           float64 `json:"ballY"`
	LeftPaddleY     float64 `json:"leftPaddleY"`
	RightPaddleY    float64 `json:"rightPaddleY"`
	SpeedX          float64 `json:"speedX"`
	SpeedY          float64 `json:"speedY"`
	Player1Score    int     `json:"player1Score"`
	Player2Score    int     `json:"player2Score"`
	Player1Username string  `json:"player1Username"`
	Player2Username string  `json:"player2Username"`
}

// GameOverFrame reports a completed match with a winner on points.
type GameOverFrame struct {
	Type            string `json:"type"`
	Winner          int    `json:"winner"`
	WinnerAlias     string `json:"winnerAlias"`
	Player1Score    int    `json:"player1Score"`
	Player2Score    int    `json:"player2Score"`
	Player1Username string `json:"player1Username"`
	Player2Username string `json:"player2Username"`
}

// GameAbandonedFrame reports a match ended by a disconnect. Winner is 0
// when the match was aborted with no winner declared.
type GameAbandonedFrame struct {
	Type            string `json:"type"`
	Winner          int    `json:"winner"`
	Reason          string `json:"reason"`
	Player1Username string `json:"player1Username"`
	Player2Username string `json:"player2Username"`
}

// ErrorFrame carries a human-readable rejection message.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorFrame(message string) *ErrorFrame {
	return &ErrorFrame{
		Type:    FrameTypeError,
		Message: message,
	}
}
