package app

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	// DatabasePath points at the SQLite file. Empty means run without
	// durable storage, in-memory only.
	DatabasePath string `env:"DATABASE_PATH"`

	MinAgents       int           `env:"MIN_AGENTS"       envDefault:"3"`
	SelectingBudget time.Duration `env:"SELECTING_BUDGET" envDefault:"5s"`
	AnsweringBudget time.Duration `env:"ANSWERING_BUDGET" envDefault:"20s"`
	ResultBudget    time.Duration `env:"RESULT_BUDGET"    envDefault:"10s"`
	VotingBudget    time.Duration `env:"VOTING_BUDGET"    envDefault:"5s"`
	CommentBudget   time.Duration `env:"COMMENT_BUDGET"   envDefault:"30s"`

	SpectatorStateInterval time.Duration `env:"SPECTATOR_STATE_INTERVAL" envDefault:"2s"`
	HeartbeatSweepInterval time.Duration `env:"HEARTBEAT_SWEEP_INTERVAL" envDefault:"30s"`
	HeartbeatTimeout       time.Duration `env:"HEARTBEAT_TIMEOUT"        envDefault:"30s"`
}

// LoadConfig parses the environment into a Config.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
