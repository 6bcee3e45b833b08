package game

import "time"

// Scoring policy. The maker bonus is additive on top of any win/loss delta
// the maker earned as a participant.
const (
	winPoints           = 10
	lossPenalty         = 5
	tieBetPoints        = 30
	makerBonus          = 3
	maxCommentSentences = 10
)

// Config tunes round pacing and the start threshold.
type Config struct {
	// MinAgents is the connected-agent threshold that starts the first
	// round. Later rounds loop regardless, skipping only when empty.
	MinAgents int

	SelectingBudget time.Duration
	AnsweringBudget time.Duration
	ResultBudget    time.Duration
	VotingBudget    time.Duration

	// CommentBudget is the advisory commenting window broadcast alongside
	// the question.
	CommentBudget time.Duration
}

// DefaultConfig matches the production pacing.
func DefaultConfig() Config {
	return Config{
		MinAgents:       3,
		SelectingBudget: 5 * time.Second,
		AnsweringBudget: 20 * time.Second,
		ResultBudget:    10 * time.Second,
		VotingBudget:    5 * time.Second,
		CommentBudget:   30 * time.Second,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MinAgents <= 0 {
		c.MinAgents = def.MinAgents
	}
	if c.SelectingBudget <= 0 {
		c.SelectingBudget = def.SelectingBudget
	}
	if c.AnsweringBudget <= 0 {
		c.AnsweringBudget = def.AnsweringBudget
	}
	if c.ResultBudget <= 0 {
		c.ResultBudget = def.ResultBudget
	}
	if c.VotingBudget <= 0 {
		c.VotingBudget = def.VotingBudget
	}
	if c.CommentBudget <= 0 {
		c.CommentBudget = def.CommentBudget
	}
	return c
}
