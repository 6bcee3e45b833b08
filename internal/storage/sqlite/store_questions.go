package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"agent-arena/server/internal/storage"
)

// CreateQuestion inserts one question and returns its generated id.
func (s *Store) CreateQuestion(ctx context.Context, q storage.NewQuestion) (int64, error) {
	if strings.TrimSpace(q.Text) == "" {
		return 0, fmt.Errorf("question text is required")
	}

	var creator any
	if q.CreatorAgentID != nil {
		creator = *q.CreatorAgentID
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO questions (question_text, creator_agent_id, round_number, created_at)
		 VALUES (?, ?, ?, ?)`,
		q.Text, creator, q.RoundNumber, toMillis(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("create question: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create question: %w", err)
	}
	return id, nil
}

// UpdateQuestionVotes overwrites the cached vote counters.
func (s *Store) UpdateQuestionVotes(ctx context.Context, id int64, likes, dislikes int) error {
	result, err := s.sqlDB.ExecContext(
		ctx, `UPDATE questions SET likes = ?, dislikes = ? WHERE id = ?`,
		likes, dislikes, id,
	)
	if err != nil {
		return fmt.Errorf("update question votes: %w", err)
	}
	return checkUpdated(result, "update question votes")
}

// TopQuestions returns questions ordered by net approval.
func (s *Store) TopQuestions(ctx context.Context, limit int) ([]storage.Question, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, question_text, creator_agent_id, round_number, likes, dislikes, created_at
		   FROM questions
		  ORDER BY likes - dislikes DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top questions: %w", err)
	}
	defer rows.Close()

	var questions []storage.Question
	for rows.Next() {
		var question storage.Question
		var creator sql.NullInt64
		var createdAt int64
		if err := rows.Scan(
			&question.ID,
			&question.Text,
			&creator,
			&question.RoundNumber,
			&question.Likes,
			&question.Dislikes,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("top questions: %w", err)
		}
		if creator.Valid {
			id := creator.Int64
			question.CreatorAgentID = &id
		}
		question.CreatedAt = fromMillis(createdAt)
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top questions: %w", err)
	}
	return questions, nil
}
