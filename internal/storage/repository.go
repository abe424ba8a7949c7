package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
)

// Question is one stored question bank entry.
type Question struct {
	ID         string `json:"question_id"`
	Stem       string `json:"stem"`
	Answer     string `json:"correct_answer"`
	Type       string `json:"question_type"`
	Difficulty int    `json:"difficulty_level"`
	Subject    string `json:"subject"`
}

// QuestionRepository provides question bank access.
type QuestionRepository struct {
	db *DB
}

// NewQuestionRepository creates a repository over an open database.
func NewQuestionRepository(db *DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Upsert inserts or replaces one question.
func (r *QuestionRepository) Upsert(ctx context.Context, q Question) error {
	if q.ID == "" {
		return domerrors.NewValidationError("question_id", "missing question id")
	}
	if q.Stem == "" {
		return domerrors.NewValidationError("stem", "missing question stem")
	}

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO questions (question_id, stem, correct_answer, question_type, difficulty_level, subject)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			stem = excluded.stem,
			correct_answer = excluded.correct_answer,
			question_type = excluded.question_type,
			difficulty_level = excluded.difficulty_level,
			subject = excluded.subject,
			updated_at = CURRENT_TIMESTAMP
	`, q.ID, q.Stem, q.Answer, q.Type, q.Difficulty, q.Subject)
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	return nil
}

// UpsertAll stores questions in one transaction.
func (r *QuestionRepository) UpsertAll(ctx context.Context, questions []Question) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (question_id, stem, correct_answer, question_type, difficulty_level, subject)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			stem = excluded.stem,
			correct_answer = excluded.correct_answer,
			question_type = excluded.question_type,
			difficulty_level = excluded.difficulty_level,
			subject = excluded.subject,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, q := range questions {
		if q.ID == "" || q.Stem == "" {
			return domerrors.NewValidationError("question", "missing question id or stem")
		}
		if _, err := stmt.ExecContext(ctx, q.ID, q.Stem, q.Answer, q.Type, q.Difficulty, q.Subject); err != nil {
			return fmt.Errorf("upsert question %s: %w", q.ID, err)
		}
	}

	return tx.Commit()
}

// GetByID fetches one question.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (Question, error) {
	var q Question
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT question_id, stem, correct_answer, question_type, difficulty_level, subject
		FROM questions WHERE question_id = ?
	`, id).Scan(&q.ID, &q.Stem, &q.Answer, &q.Type, &q.Difficulty, &q.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, domerrors.ErrNotFound
	}
	if err != nil {
		return Question{}, fmt.Errorf("get question %s: %w", id, err)
	}
	return q, nil
}

// GetAll returns the whole corpus in stable id order.
func (r *QuestionRepository) GetAll(ctx context.Context) ([]Question, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT question_id, stem, correct_answer, question_type, difficulty_level, subject
		FROM questions ORDER BY question_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Stem, &q.Answer, &q.Type, &q.Difficulty, &q.Subject); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Count returns the stored question count.
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// Delete removes one question.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.conn.ExecContext(ctx, `DELETE FROM questions WHERE question_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete question %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete question %s: %w", id, err)
	}
	if affected == 0 {
		return domerrors.ErrNotFound
	}
	return nil
}
