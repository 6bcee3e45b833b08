package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agent-arena/server/internal/storage"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// CreateVote records one spectator rating. Returns false when the voter
// already rated this question.
func (s *Store) CreateVote(ctx context.Context, v storage.Vote) (bool, error) {
	if strings.TrimSpace(v.VoterKey) == "" {
		return false, fmt.Errorf("voter key is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO human_votes (question_id, voter_key, vote_type, created_at)
		 VALUES (?, ?, ?, ?)`,
		v.QuestionID, v.VoterKey, string(v.Type), toMillis(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("create vote: %w", err)
	}
	return true, nil
}

// VoteCounts aggregates ratings for one question.
func (s *Store) VoteCounts(ctx context.Context, questionID int64) (storage.VoteCounts, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(CASE WHEN vote_type = 'thumbs_up' THEN 1 END),
		        COUNT(CASE WHEN vote_type = 'thumbs_down' THEN 1 END)
		   FROM human_votes
		  WHERE question_id = ?`,
		questionID,
	)
	var counts storage.VoteCounts
	if err := row.Scan(&counts.Likes, &counts.Dislikes); err != nil {
		return storage.VoteCounts{}, fmt.Errorf("vote counts: %w", err)
	}
	return counts, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
