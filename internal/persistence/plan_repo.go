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

// sqlPlanRepo implements PlanRepository
type sqlPlanRepo struct {
	db querier
	sb sq.StatementBuilderType
}

func (r *sqlPlanRepo) Get(ctx context.Context, userID string) (*core.StudyPlan, error) {
	query, args, err := r.sb.Select("user_id", "target_year", "hours_per_week", "generated_on", "weeks_json", "feedback_json", "updated_at").
		From("study_plans").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var p core.StudyPlan
	var weeksJSON string
	var feedbackJSON sql.NullString
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.UserID, &p.TargetYear, &p.HoursPerWeek, &p.GeneratedOn, &weeksJSON, &feedbackJSON, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan for %s: %w", userID, err)
	}

	p.Weeks = []core.PlanWeek{}
	if err := json.Unmarshal([]byte(weeksJSON), &p.Weeks); err != nil || p.Weeks == nil {
		if err != nil {
			logger.Warn("Malformed plan weeks, treating as empty", "user_id", userID, "error", err)
		}
		p.Weeks = []core.PlanWeek{}
	}
	if feedbackJSON.Valid && feedbackJSON.String != "" {
		var fb core.FeedbackSummary
		if err := json.Unmarshal([]byte(feedbackJSON.String), &fb); err != nil {
			logger.Warn("Malformed plan feedback, ignoring", "user_id", userID, "error", err)
		} else {
			p.Feedback = &fb
		}
	}
	return &p, nil
}

func (r *sqlPlanRepo) Upsert(ctx context.Context, plan *core.StudyPlan) error {
	weeks := plan.Weeks
	if weeks == nil {
		weeks = []core.PlanWeek{}
	}
	weeksJSON, err := json.Marshal(weeks)
	if err != nil {
		return fmt.Errorf("failed to marshal plan weeks: %w", err)
	}

	var feedback interface{}
	if plan.Feedback != nil {
		data, err := json.Marshal(plan.Feedback)
		if err != nil {
			return fmt.Errorf("failed to marshal plan feedback: %w", err)
		}
		feedback = string(data)
	}

	plan.UpdatedAt = time.Now().UTC()
	query, args, err := r.sb.Insert("study_plans").
		Columns("user_id", "target_year", "hours_per_week", "generated_on", "weeks_json", "feedback_json", "updated_at").
		Values(plan.UserID, plan.TargetYear, plan.HoursPerWeek, plan.GeneratedOn, string(weeksJSON), feedback, plan.UpdatedAt).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			target_year = excluded.target_year,
			hours_per_week = excluded.hours_per_week,
			generated_on = excluded.generated_on,
			weeks_json = excluded.weeks_json,
			feedback_json = excluded.feedback_json,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save plan for %s: %w", plan.UserID, err)
	}
	return nil
}

// sqlTestResultRepo implements TestResultRepository
type sqlTestResultRepo struct {
	db querier
	sb sq.StatementBuilderType
}

var testResultColumns = []string{"id", "user_id", "test_name", "score", "date"}

func (r *sqlTestResultRepo) Append(ctx context.Context, res *core.TestResult) error {
	query, args, err := r.sb.Insert("test_results").
		Columns("user_id", "test_name", "score", "date").
		Values(res.UserID, res.TestName, res.Score, res.Date).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&res.ID); err != nil {
		return fmt.Errorf("failed to record test result: %w", err)
	}
	return nil
}

func (r *sqlTestResultRepo) ListByUser(ctx context.Context, userID string) ([]core.TestResult, error) {
	return r.list(ctx, r.sb.Select(testResultColumns...).From("test_results").
		Where(sq.Eq{"user_id": userID}).OrderBy("id ASC"))
}

func (r *sqlTestResultRepo) Recent(ctx context.Context, userID string, limit int) ([]core.TestResult, error) {
	if limit <= 0 {
		return []core.TestResult{}, nil
	}
	return r.list(ctx, r.sb.Select(testResultColumns...).From("test_results").
		Where(sq.Eq{"user_id": userID}).OrderBy("id DESC").Limit(uint64(limit)))
}

func (r *sqlTestResultRepo) Since(ctx context.Context, date string) ([]core.TestResult, error) {
	return r.list(ctx, r.sb.Select(testResultColumns...).From("test_results").
		Where(sq.GtOrEq{"date": date}).OrderBy("id ASC"))
}

func (r *sqlTestResultRepo) list(ctx context.Context, b sq.SelectBuilder) ([]core.TestResult, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list test results: %w", err)
	}
	defer rows.Close()

	results := []core.TestResult{}
	for rows.Next() {
		var t core.TestResult
		if err := rows.Scan(&t.ID, &t.UserID, &t.TestName, &t.Score, &t.Date); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}
