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

// sqlCapsuleRepo implements CapsuleRepository
type sqlCapsuleRepo struct {
	db querier
	sb sq.StatementBuilderType
}

func (r *sqlCapsuleRepo) Claim(ctx context.Context, date string) (*core.Capsule, error) {
	now := time.Now().UTC()
	query, args, err := r.sb.Insert("capsules").
		Columns("date", "items_json", "created_at", "updated_at").
		Values(date, "[]", now, now).
		Suffix("ON CONFLICT (date) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to claim capsule %s: %w", date, err)
	}

	c, err := r.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("capsule %s missing after claim", date)
	}
	return c, nil
}

func (r *sqlCapsuleRepo) Get(ctx context.Context, date string) (*core.Capsule, error) {
	query, args, err := r.sb.Select("date", "items_json", "created_at", "updated_at").
		From("capsules").
		Where(sq.Eq{"date": date}).
		ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanCapsule(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *sqlCapsuleRepo) SaveItems(ctx context.Context, date string, items []core.CapsuleItem) error {
	if items == nil {
		items = []core.CapsuleItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal capsule items: %w", err)
	}

	now := time.Now().UTC()
	query, args, err := r.sb.Insert("capsules").
		Columns("date", "items_json", "created_at", "updated_at").
		Values(date, string(data), now, now).
		Suffix("ON CONFLICT (date) DO UPDATE SET items_json = excluded.items_json, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save capsule %s: %w", date, err)
	}
	return nil
}

func (r *sqlCapsuleRepo) Since(ctx context.Context, since string) ([]core.Capsule, error) {
	query, args, err := r.sb.Select("date", "items_json", "created_at", "updated_at").
		From("capsules").
		Where(sq.GtOrEq{"date": since}).
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list capsules: %w", err)
	}
	defer rows.Close()

	capsules := []core.Capsule{}
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, err
		}
		capsules = append(capsules, *c)
	}
	return capsules, rows.Err()
}

func scanCapsule(s scanner) (*core.Capsule, error) {
	var c core.Capsule
	var itemsJSON string
	if err := s.Scan(&c.Date, &itemsJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Items = decodeItems(c.Date, itemsJSON)
	return &c, nil
}

// decodeItems treats malformed stored JSON as an empty capsule.
func decodeItems(date, data string) []core.CapsuleItem {
	items := []core.CapsuleItem{}
	if data == "" {
		return items
	}
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		logger.Warn("Malformed capsule items, treating as empty", "date", date, "error", err)
		return []core.CapsuleItem{}
	}
	if items == nil {
		items = []core.CapsuleItem{}
	}
	return items
}
