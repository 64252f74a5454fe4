package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"civicbriefs/internal/core"

	sq "github.com/Masterminds/squirrel"
)

var newsColumns = []string{"seq", "id", "source", "title", "url", "published_at", "raw_content", "summary", "created_at"}

// sqlNewsRepo implements NewsRepository
type sqlNewsRepo struct {
	db querier
	sb sq.StatementBuilderType
}

func (r *sqlNewsRepo) Insert(ctx context.Context, item *core.NewsItem) (bool, error) {
	if item.ID == "" {
		item.ID = core.NewsID(item.URL)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.sb.Insert("news_items").
		Columns("id", "source", "title", "url", "published_at", "raw_content", "summary", "created_at").
		Values(item.ID, item.Source, item.Title, item.URL, item.PublishedAt, item.RawContent, item.Summary, item.CreatedAt).
		Suffix("ON CONFLICT DO NOTHING RETURNING seq").
		ToSql()
	if err != nil {
		return false, err
	}

	err = r.db.QueryRowContext(ctx, query, args...).Scan(&item.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert news item %s: %w", item.URL, err)
	}
	return true, nil
}

func (r *sqlNewsRepo) GetByURL(ctx context.Context, url string) (*core.NewsItem, error) {
	return r.getOne(ctx, sq.Eq{"url": url})
}

func (r *sqlNewsRepo) Get(ctx context.Context, id string) (*core.NewsItem, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *sqlNewsRepo) getOne(ctx context.Context, where sq.Eq) (*core.NewsItem, error) {
	query, args, err := r.sb.Select(newsColumns...).From("news_items").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	item, err := scanNews(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func (r *sqlNewsRepo) Recent(ctx context.Context, limit int) ([]core.NewsItem, error) {
	if limit <= 0 {
		return []core.NewsItem{}, nil
	}
	items, err := r.list(ctx, r.sb.Select(newsColumns...).From("news_items").OrderBy("seq DESC").Limit(uint64(limit)))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (r *sqlNewsRepo) All(ctx context.Context) ([]core.NewsItem, error) {
	return r.list(ctx, r.sb.Select(newsColumns...).From("news_items").OrderBy("seq ASC"))
}

func (r *sqlNewsRepo) list(ctx context.Context, b sq.SelectBuilder) ([]core.NewsItem, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list news items: %w", err)
	}
	defer rows.Close()

	items := []core.NewsItem{}
	for rows.Next() {
		item, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *sqlNewsRepo) UpdateContent(ctx context.Context, id, rawContent, summary string) error {
	return r.update(ctx, id, sq.Eq{"raw_content": rawContent, "summary": summary})
}

func (r *sqlNewsRepo) UpdateSummary(ctx context.Context, id, summary string) error {
	return r.update(ctx, id, sq.Eq{"summary": summary})
}

func (r *sqlNewsRepo) update(ctx context.Context, id string, set sq.Eq) error {
	query, args, err := r.sb.Update("news_items").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update news item %s: %w", id, err)
	}
	return checkAffected(res)
}

func (r *sqlNewsRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, r.sb, "news_items")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNews(s scanner) (*core.NewsItem, error) {
	var item core.NewsItem
	err := s.Scan(&item.Seq, &item.ID, &item.Source, &item.Title, &item.URL,
		&item.PublishedAt, &item.RawContent, &item.Summary, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
