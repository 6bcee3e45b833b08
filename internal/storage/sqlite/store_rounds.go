package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agent-arena/server/internal/storage"
)

// CreateRound persists one completed round outcome.
func (s *Store) CreateRound(ctx context.Context, r storage.NewRound) error {
	var maker any
	if r.MakerAgentID != nil {
		maker = *r.MakerAgentID
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rounds (round_number, question_id, maker_agent_id,
		                     o_count, x_count, outcome, duration_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoundNumber, r.QuestionID, maker,
		r.OCount, r.XCount, r.Outcome, r.DurationSeconds, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("create round: %w", err)
	}
	return nil
}

// LatestRoundNumber returns the highest persisted round number, zero when no
// round has completed yet.
func (s *Store) LatestRoundNumber(ctx context.Context) (int, error) {
	row := s.sqlDB.QueryRowContext(
		ctx, `SELECT round_number FROM rounds ORDER BY round_number DESC LIMIT 1`,
	)
	var latest int
	if err := row.Scan(&latest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("latest round number: %w", err)
	}
	return latest, nil
}

// RoundHistory returns recent rounds, newest first.
func (s *Store) RoundHistory(ctx context.Context, limit int) ([]storage.Round, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, round_number, question_id, maker_agent_id,
		        o_count, x_count, outcome, duration_seconds, created_at
		   FROM rounds
		  ORDER BY round_number DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("round history: %w", err)
	}
	defer rows.Close()

	var rounds []storage.Round
	for rows.Next() {
		var round storage.Round
		var maker sql.NullInt64
		var createdAt int64
		if err := rows.Scan(
			&round.ID,
			&round.RoundNumber,
			&round.QuestionID,
			&maker,
			&round.OCount,
			&round.XCount,
			&round.Outcome,
			&round.DurationSeconds,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("round history: %w", err)
		}
		if maker.Valid {
			id := maker.Int64
			round.MakerAgentID = &id
		}
		round.CreatedAt = fromMillis(createdAt)
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("round history: %w", err)
	}
	return rounds, nil
}
