package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cbodonnell/rally/pkg/game"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Flags override file values, and
// the file overrides defaults, so a config file only needs the keys it
// wants to change.
type Config struct {
	GamePort   int    `yaml:"game_port"`
	APIPort    int    `yaml:"api_port"`
	LogLevel   string `yaml:"log_level"`
	SQLitePath string `yaml:"sqlite_path"`
	// ReconnectLingerMS is how long an abandoned waiting match survives
	// before removal, in milliseconds.
	ReconnectLingerMS int        `yaml:"reconnect_linger_ms"`
	Game              GameConfig `yaml:"game"`
}

// GameConfig tunes the board geometry and simulation timing.
type GameConfig struct {
	CanvasWidth      float64 `yaml:"canvas_width"`
	CanvasHeight     float64 `yaml:"canvas_height"`
	PaddleWidth      float64 `yaml:"paddle_width"`
	PaddleHeight     float64 `yaml:"paddle_height"`
	PaddleSpeed      float64 `yaml:"paddle_speed"`
	BallRadius       float64 `yaml:"ball_radius"`
	BallBaseSpeed    float64 `yaml:"ball_base_speed"`
	MaxBallVY        float64 `yaml:"max_ball_vy"`
	ServeMaxVY       float64 `yaml:"serve_max_vy"`
	MaxScore         int     `yaml:"max_score"`
	TickIntervalMS   int     `yaml:"tick_interval_ms"`
	CountdownSeconds int     `yaml:"countdown_seconds"`
}

// Default returns the standard configuration.
func Default() Config {
	geo := game.DefaultGeometry()
	return Config{
		GamePort:          8888,
		APIPort:           8889,
		LogLevel:          "info",
		SQLitePath:        "rally.db",
		ReconnectLingerMS: 1000,
		Game: GameConfig{
			CanvasWidth:      geo.CanvasWidth,
			CanvasHeight:     geo.CanvasHeight,
			PaddleWidth:      geo.PaddleWidth,
			PaddleHeight:     geo.PaddleHeight,
			PaddleSpeed:      geo.PaddleSpeed,
			BallRadius:       geo.BallRadius,
			BallBaseSpeed:    geo.BallBaseSpeed,
			MaxBallVY:        geo.MaxBallVY,
			ServeMaxVY:       geo.ServeMaxVY,
			MaxScore:         geo.MaxScore,
			TickIntervalMS:   int(geo.TickInterval / time.Millisecond),
			CountdownSeconds: geo.CountdownSeconds,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	return cfg, nil
}

// Geometry converts the game tuning into a simulation geometry.
func (c Config) Geometry() game.Geometry {
	return game.Geometry{
		CanvasWidth:      c.Game.CanvasWidth,
		CanvasHeight:     c.Game.CanvasHeight,
		PaddleWidth:      c.Game.PaddleWidth,
		PaddleHeight:     c.Game.PaddleHeight,
		PaddleSpeed:      c.Game.PaddleSpeed,
		BallRadius:       c.Game.BallRadius,
		BallBaseSpeed:    c.Game.BallBaseSpeed,
		MaxBallVY:        c.Game.MaxBallVY,
		ServeMaxVY:       c.Game.ServeMaxVY,
		MaxScore:         c.Game.MaxScore,
		TickInterval:     time.Duration(c.Game.TickIntervalMS) * time.Millisecond,
		CountdownSeconds: c.Game.CountdownSeconds,
	}
}

// ReconnectLinger returns the linger as a duration.
func (c Config) ReconnectLinger() time.Duration {
	return time.Duration(c.ReconnectLingerMS) * time.Millisecond
}
