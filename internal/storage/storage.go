// Package storage defines the persistence port for the quiz arena. The
// engine and HTTP layer talk to this interface; concrete backends live in
// the memory and sqlite subpackages.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing record. Callers that feed reads into game
// logic treat it as a safe negative rather than a failure.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict reports a uniqueness violation, such as a taken nickname.
// Both backends return it so the HTTP layer can tell a conflict apart
// from a backend failure.
var ErrConflict = errors.New("storage: conflict")

// Agent is the persisted record for one autonomous participant.
type Agent struct {
	ID             int64
	Nickname       string
	APIKey         string
	Score          int
	Level          int
	Wins           int
	Losses         int
	QuestionsAsked int
	IsConnected    bool
	LastHeartbeat  time.Time
	CreatedAt      time.Time
}

// Question is one submitted (or fallback) O/X statement. CreatorAgentID is
// nil when a fallback question could not be attributed to a live agent.
type Question struct {
	ID             int64
	Text           string
	CreatorAgentID *int64
	RoundNumber    int
	Likes          int
	Dislikes       int
	CreatedAt      time.Time
}

// Round is the terminal record of one completed round.
type Round struct {
	ID              int64
	RoundNumber     int
	QuestionID      int64
	MakerAgentID    *int64
	OCount          int
	XCount          int
	Outcome         string // "O", "X", or "T"
	DurationSeconds int
	CreatedAt       time.Time
}

// VoteType is a spectator's rating of a question.
type VoteType string

const (
	VoteThumbsUp   VoteType = "thumbs_up"
	VoteThumbsDown VoteType = "thumbs_down"
)

// Vote is one spectator rating, unique per (question, voter key).
type Vote struct {
	QuestionID int64
	VoterKey   string
	Type       VoteType
}

// VoteCounts aggregates ratings for a question.
type VoteCounts struct {
	Likes    int
	Dislikes int
}

// StatDelta carries increments for an agent's cumulative counters. Zero
// fields are left untouched.
type StatDelta struct {
	Wins           int
	Losses         int
	QuestionsAsked int
}

// NewQuestion carries the fields needed to persist a question.
type NewQuestion struct {
	Text           string
	CreatorAgentID *int64
	RoundNumber    int
}

// NewRound carries the fields needed to persist a round outcome.
type NewRound struct {
	RoundNumber     int
	QuestionID      int64
	MakerAgentID    *int64
	OCount          int
	XCount          int
	Outcome         string
	DurationSeconds int
}

// Store is the keyed persistence contract consumed by the engine and the
// HTTP layer. Implementations must be safe for concurrent use.
type Store interface {
	CreateAgent(ctx context.Context, nickname, apiKey string) (Agent, error)
	GetAgentByID(ctx context.Context, id int64) (Agent, error)
	GetAgentByAPIKey(ctx context.Context, apiKey string) (Agent, error)
	UpdateAgentConnection(ctx context.Context, id int64, connected bool) error
	UpdateAgentHeartbeat(ctx context.Context, id int64) error
	UpdateAgentScore(ctx context.Context, id int64, delta int) error
	UpdateAgentStats(ctx context.Context, id int64, delta StatDelta) error
	ConnectedAgents(ctx context.Context) ([]Agent, error)
	TopAgents(ctx context.Context, limit int) ([]Agent, error)

	CreateQuestion(ctx context.Context, q NewQuestion) (int64, error)
	UpdateQuestionVotes(ctx context.Context, id int64, likes, dislikes int) error
	TopQuestions(ctx context.Context, limit int) ([]Question, error)

	CreateRound(ctx context.Context, r NewRound) error
	LatestRoundNumber(ctx context.Context) (int, error)
	RoundHistory(ctx context.Context, limit int) ([]Round, error)

	// CreateVote returns false when the voter already rated the question.
	CreateVote(ctx context.Context, v Vote) (bool, error)
	VoteCounts(ctx context.Context, questionID int64) (VoteCounts, error)
}
