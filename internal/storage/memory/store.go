// Package memory provides a map-backed Store used when no database path is
// configured and by engine tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agent-arena/server/internal/storage"
)

// Store keeps all records in process memory behind a single mutex.
type Store struct {
	mu             sync.Mutex
	agents         map[int64]*storage.Agent
	questions      map[int64]*storage.Question
	rounds         []storage.Round
	votes          map[voteKey]storage.VoteType
	nextAgentID    int64
	nextQuestionID int64
	nextRoundID    int64
}

type voteKey struct {
	questionID int64
	voterKey   string
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		agents:    make(map[int64]*storage.Agent),
		questions: make(map[int64]*storage.Question),
		votes:     make(map[voteKey]storage.VoteType),
	}
}

func (s *Store) CreateAgent(_ context.Context, nickname, apiKey string) (storage.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, agent := range s.agents {
		if agent.Nickname == nickname {
			return storage.Agent{}, fmt.Errorf("nickname %q already taken: %w", nickname, storage.ErrConflict)
		}
	}

	s.nextAgentID++
	agent := storage.Agent{
		ID:        s.nextAgentID,
		Nickname:  nickname,
		APIKey:    apiKey,
		Level:     1,
		CreatedAt: time.Now(),
	}
	s.agents[agent.ID] = &agent
	copied := agent
	return copied, nil
}

func (s *Store) GetAgentByID(_ context.Context, id int64) (storage.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return storage.Agent{}, storage.ErrNotFound
	}
	return *agent, nil
}

func (s *Store) GetAgentByAPIKey(_ context.Context, apiKey string) (storage.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, agent := range s.agents {
		if agent.APIKey == apiKey {
			return *agent, nil
		}
	}
	return storage.Agent{}, storage.ErrNotFound
}

func (s *Store) UpdateAgentConnection(_ context.Context, id int64, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return storage.ErrNotFound
	}
	agent.IsConnected = connected
	if connected {
		agent.LastHeartbeat = time.Now()
	}
	return nil
}

func (s *Store) UpdateAgentHeartbeat(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return storage.ErrNotFound
	}
	agent.LastHeartbeat = time.Now()
	return nil
}

func (s *Store) UpdateAgentScore(_ context.Context, id int64, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return storage.ErrNotFound
	}
	agent.Score += delta
	return nil
}

func (s *Store) UpdateAgentStats(_ context.Context, id int64, delta storage.StatDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return storage.ErrNotFound
	}
	agent.Wins += delta.Wins
	agent.Losses += delta.Losses
	agent.QuestionsAsked += delta.QuestionsAsked
	return nil
}

func (s *Store) ConnectedAgents(_ context.Context) ([]storage.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents := make([]storage.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		if agent.IsConnected {
			agents = append(agents, *agent)
		}
	}
	return agents, nil
}

func (s *Store) TopAgents(_ context.Context, limit int) ([]storage.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents := make([]storage.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		agents = append(agents, *agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Score > agents[j].Score })
	if limit > 0 && len(agents) > limit {
		agents = agents[:limit]
	}
	return agents, nil
}

func (s *Store) CreateQuestion(_ context.Context, q storage.NewQuestion) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQuestionID++
	question := storage.Question{
		ID:             s.nextQuestionID,
		Text:           q.Text,
		CreatorAgentID: q.CreatorAgentID,
		RoundNumber:    q.RoundNumber,
		CreatedAt:      time.Now(),
	}
	s.questions[question.ID] = &question
	return question.ID, nil
}

func (s *Store) UpdateQuestionVotes(_ context.Context, id int64, likes, dislikes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	question, ok := s.questions[id]
	if !ok {
		return storage.ErrNotFound
	}
	question.Likes = likes
	question.Dislikes = dislikes
	return nil
}

func (s *Store) TopQuestions(_ context.Context, limit int) ([]storage.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := make([]storage.Question, 0, len(s.questions))
	for _, question := range s.questions {
		questions = append(questions, *question)
	}
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].Likes-questions[i].Dislikes > questions[j].Likes-questions[j].Dislikes
	})
	if limit > 0 && len(questions) > limit {
		questions = questions[:limit]
	}
	return questions, nil
}

func (s *Store) CreateRound(_ context.Context, r storage.NewRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRoundID++
	s.rounds = append(s.rounds, storage.Round{
		ID:              s.nextRoundID,
		RoundNumber:     r.RoundNumber,
		QuestionID:      r.QuestionID,
		MakerAgentID:    r.MakerAgentID,
		OCount:          r.OCount,
		XCount:          r.XCount,
		Outcome:         r.Outcome,
		DurationSeconds: r.DurationSeconds,
		CreatedAt:       time.Now(),
	})
	return nil
}

func (s *Store) LatestRoundNumber(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := 0
	for _, round := range s.rounds {
		if round.RoundNumber > latest {
			latest = round.RoundNumber
		}
	}
	return latest, nil
}

func (s *Store) RoundHistory(_ context.Context, limit int) ([]storage.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rounds := make([]storage.Round, len(s.rounds))
	copy(rounds, s.rounds)
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].RoundNumber > rounds[j].RoundNumber })
	if limit > 0 && len(rounds) > limit {
		rounds = rounds[:limit]
	}
	return rounds, nil
}

func (s *Store) CreateVote(_ context.Context, v storage.Vote) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey{questionID: v.QuestionID, voterKey: v.VoterKey}
	if _, exists := s.votes[key]; exists {
		return false, nil
	}
	s.votes[key] = v.Type
	return true, nil
}

func (s *Store) VoteCounts(_ context.Context, questionID int64) (storage.VoteCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts storage.VoteCounts
	for key, voteType := range s.votes {
		if key.questionID != questionID {
			continue
		}
		if voteType == storage.VoteThumbsUp {
			counts.Likes++
		} else {
			counts.Dislikes++
		}
	}
	return counts, nil
}

var _ storage.Store = (*Store)(nil)
