package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"civicbriefs/internal/core"
	"civicbriefs/internal/logger"

	sq "github.com/Masterminds/squirrel"
)

// sqlQuizRepo implements QuizRepository
type sqlQuizRepo struct {
	db querier
	sb sq.StatementBuilderType
}

func (r *sqlQuizRepo) Get(ctx context.Context, date, name string) (*core.Quiz, error) {
	query, args, err := r.sb.Select("date", "name", "questions_json").
		From("quizzes").
		Where(sq.Eq{"date": date, "name": name}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var q core.Quiz
	var questionsJSON string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&q.Date, &q.Name, &questionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz %s/%s: %w", date, name, err)
	}

	if err := json.Unmarshal([]byte(questionsJSON), &q.Questions); err != nil {
		logger.Warn("Malformed quiz questions, treating as empty", "date", date, "name", name, "error", err)
		q.Questions = nil
	}
	if q.Questions == nil {
		q.Questions = []core.QuizQuestion{}
	}
	return &q, nil
}

func (r *sqlQuizRepo) Save(ctx context.Context, quiz *core.Quiz, replace bool) error {
	data, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal quiz questions: %w", err)
	}

	suffix := "ON CONFLICT (date, name) DO NOTHING"
	if replace {
		suffix = "ON CONFLICT (date, name) DO UPDATE SET questions_json = excluded.questions_json, created_at = excluded.created_at"
	}
	query, args, err := r.sb.Insert("quizzes").
		Columns("date", "name", "questions_json", "created_at").
		Values(quiz.Date, quiz.Name, string(data), time.Now().UTC()).
		Suffix(suffix).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save quiz %s/%s: %w", quiz.Date, quiz.Name, err)
	}
	return nil
}

// sqlChatRepo implements ChatRepository
type sqlChatRepo struct {
	db querier
	sb sq.StatementBuilderType
}

func (r *sqlChatRepo) Append(ctx context.Context, msg *core.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query, args, err := r.sb.Insert("chat_messages").
		Columns("user_id", "session_id", "role", "content", "created_at").
		Values(msg.UserID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&msg.ID); err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

func (r *sqlChatRepo) Recent(ctx context.Context, userID, sessionID string, limit int) ([]core.ChatMessage, error) {
	if limit <= 0 {
		return []core.ChatMessage{}, nil
	}
	query, args, err := r.sb.Select("id", "user_id", "session_id", "role", "content", "created_at").
		From("chat_messages").
		Where(sq.Eq{"user_id": userID, "session_id": sessionID}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	msgs := []core.ChatMessage{}
	for rows.Next() {
		var m core.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
