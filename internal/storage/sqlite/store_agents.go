package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"agent-arena/server/internal/storage"
)

const agentColumns = `id, nickname, api_key, score, level, wins, losses,
       questions_asked, is_connected, last_heartbeat, created_at`

func scanAgent(row interface{ Scan(...any) error }) (storage.Agent, error) {
	var agent storage.Agent
	var connected int
	var heartbeat sql.NullInt64
	var createdAt int64
	err := row.Scan(
		&agent.ID,
		&agent.Nickname,
		&agent.APIKey,
		&agent.Score,
		&agent.Level,
		&agent.Wins,
		&agent.Losses,
		&agent.QuestionsAsked,
		&connected,
		&heartbeat,
		&createdAt,
	)
	if err != nil {
		return storage.Agent{}, err
	}
	agent.IsConnected = connected != 0
	if heartbeat.Valid {
		agent.LastHeartbeat = fromMillis(heartbeat.Int64)
	}
	agent.CreatedAt = fromMillis(createdAt)
	return agent, nil
}

// CreateAgent inserts a new agent with zeroed counters and returns the row.
func (s *Store) CreateAgent(ctx context.Context, nickname, apiKey string) (storage.Agent, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return storage.Agent{}, fmt.Errorf("nickname is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return storage.Agent{}, fmt.Errorf("api key is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO agents (nickname, api_key, level, created_at) VALUES (?, ?, 1, ?)`,
		nickname, apiKey, toMillis(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.Agent{}, fmt.Errorf("nickname %q already taken: %w", nickname, storage.ErrConflict)
		}
		return storage.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return s.GetAgentByID(ctx, id)
}

// GetAgentByID returns one agent or storage.ErrNotFound.
func (s *Store) GetAgentByID(ctx context.Context, id int64) (storage.Agent, error) {
	row := s.sqlDB.QueryRowContext(
		ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id,
	)
	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Agent{}, storage.ErrNotFound
		}
		return storage.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

// GetAgentByAPIKey resolves the authenticated identity for a connection.
func (s *Store) GetAgentByAPIKey(ctx context.Context, apiKey string) (storage.Agent, error) {
	row := s.sqlDB.QueryRowContext(
		ctx, `SELECT `+agentColumns+` FROM agents WHERE api_key = ?`, apiKey,
	)
	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Agent{}, storage.ErrNotFound
		}
		return storage.Agent{}, fmt.Errorf("get agent by api key: %w", err)
	}
	return agent, nil
}

// checkUpdated maps a zero-row update onto storage.ErrNotFound.
func checkUpdated(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateAgentConnection flips the connected flag; connecting also refreshes
// the heartbeat so the sweep does not immediately reap a fresh session.
func (s *Store) UpdateAgentConnection(ctx context.Context, id int64, connected bool) error {
	var result sql.Result
	var err error
	if connected {
		result, err = s.sqlDB.ExecContext(
			ctx,
			`UPDATE agents SET is_connected = 1, last_heartbeat = ? WHERE id = ?`,
			toMillis(time.Now()), id,
		)
	} else {
		result, err = s.sqlDB.ExecContext(
			ctx, `UPDATE agents SET is_connected = 0 WHERE id = ?`, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update agent connection: %w", err)
	}
	return checkUpdated(result, "update agent connection")
}

// UpdateAgentHeartbeat stamps the advisory liveness timestamp.
func (s *Store) UpdateAgentHeartbeat(ctx context.Context, id int64) error {
	result, err := s.sqlDB.ExecContext(
		ctx, `UPDATE agents SET last_heartbeat = ? WHERE id = ?`,
		toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update agent heartbeat: %w", err)
	}
	return checkUpdated(result, "update agent heartbeat")
}

// UpdateAgentScore applies a relative score delta.
func (s *Store) UpdateAgentScore(ctx context.Context, id int64, delta int) error {
	result, err := s.sqlDB.ExecContext(
		ctx, `UPDATE agents SET score = score + ? WHERE id = ?`, delta, id,
	)
	if err != nil {
		return fmt.Errorf("update agent score: %w", err)
	}
	return checkUpdated(result, "update agent score")
}

// UpdateAgentStats increments cumulative counters.
func (s *Store) UpdateAgentStats(ctx context.Context, id int64, delta storage.StatDelta) error {
	if delta == (storage.StatDelta{}) {
		return nil
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE agents
		    SET wins = wins + ?, losses = losses + ?, questions_asked = questions_asked + ?
		  WHERE id = ?`,
		delta.Wins, delta.Losses, delta.QuestionsAsked, id,
	)
	if err != nil {
		return fmt.Errorf("update agent stats: %w", err)
	}
	return checkUpdated(result, "update agent stats")
}

// ConnectedAgents lists agents currently flagged connected.
func (s *Store) ConnectedAgents(ctx context.Context) ([]storage.Agent, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx, `SELECT `+agentColumns+` FROM agents WHERE is_connected = 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("connected agents: %w", err)
	}
	defer rows.Close()

	var agents []storage.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("connected agents: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("connected agents: %w", err)
	}
	return agents, nil
}

// TopAgents returns the leaderboard ordered by score.
func (s *Store) TopAgents(ctx context.Context, limit int) ([]storage.Agent, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.sqlDB.QueryContext(
		ctx, `SELECT `+agentColumns+` FROM agents ORDER BY score DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top agents: %w", err)
	}
	defer rows.Close()

	var agents []storage.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("top agents: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top agents: %w", err)
	}
	return agents, nil
}
