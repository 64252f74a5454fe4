package persistence

import (
	"context"
	"fmt"

	"civicbriefs/internal/core"

	sq "github.com/Masterminds/squirrel"
)

// sqlTopicRepo implements TopicRepository
type sqlTopicRepo struct {
	db querier
	sb sq.StatementBuilderType
}

func (r *sqlTopicRepo) Insert(ctx context.Context, topic *core.SyllabusTopic) error {
	query, args, err := r.sb.Insert("syllabus_topics").
		Columns("paper", "topic", "keywords").
		Values(string(topic.Paper), topic.Topic, topic.Keywords).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&topic.ID); err != nil {
		return fmt.Errorf("failed to insert topic %s: %w", topic.Label(), err)
	}
	return nil
}

func (r *sqlTopicRepo) List(ctx context.Context) ([]core.SyllabusTopic, error) {
	query, args, err := r.sb.Select("id", "paper", "topic", "keywords").From("syllabus_topics").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	topics := []core.SyllabusTopic{}
	for rows.Next() {
		var t core.SyllabusTopic
		var paper string
		if err := rows.Scan(&t.ID, &paper, &t.Topic, &t.Keywords); err != nil {
			return nil, err
		}
		t.Paper = core.Paper(paper)
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (r *sqlTopicRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, r.sb, "syllabus_topics")
}

// sqlPyqRepo implements PyqRepository
type sqlPyqRepo struct {
	db querier
	sb sq.StatementBuilderType
}

func (r *sqlPyqRepo) Insert(ctx context.Context, q *core.PyqQuestion) error {
	query, args, err := r.sb.Insert("pyq_questions").
		Columns("year", "paper", "question", "keywords").
		Values(q.Year, string(q.Paper), q.Question, q.Keywords).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&q.ID); err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}
	return nil
}

func (r *sqlPyqRepo) List(ctx context.Context) ([]core.PyqQuestion, error) {
	query, args, err := r.sb.Select("id", "year", "paper", "question", "keywords").From("pyq_questions").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := []core.PyqQuestion{}
	for rows.Next() {
		var q core.PyqQuestion
		var paper string
		if err := rows.Scan(&q.ID, &q.Year, &paper, &q.Question, &q.Keywords); err != nil {
			return nil, err
		}
		q.Paper = core.Paper(paper)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *sqlPyqRepo) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, r.sb, "pyq_questions")
}

// sqlMappingRepo implements MappingRepository
type sqlMappingRepo struct {
	db querier
	sb sq.StatementBuilderType
}

func (r *sqlMappingRepo) Insert(ctx context.Context, m core.Mapping) (bool, error) {
	query, args, err := r.sb.Insert("mappings").
		Columns("news_id", "topic_id", "score").
		Values(m.NewsID, m.TopicID, m.Score).
		Suffix("ON CONFLICT (news_id, topic_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert mapping %s/%d: %w", m.NewsID, m.TopicID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *sqlMappingRepo) TopicsForNews(ctx context.Context, newsID string) ([]core.TopicMatch, error) {
	query, args, err := r.sb.Select("t.id", "t.paper", "t.topic", "t.keywords", "m.score").
		From("mappings m").
		Join("syllabus_topics t ON t.id = m.topic_id").
		Where(sq.Eq{"m.news_id": newsID}).
		OrderBy("m.score DESC", "m.id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load topics for %s: %w", newsID, err)
	}
	defer rows.Close()

	matches := []core.TopicMatch{}
	for rows.Next() {
		var m core.TopicMatch
		var paper string
		if err := rows.Scan(&m.Topic.ID, &paper, &m.Topic.Topic, &m.Topic.Keywords, &m.Score); err != nil {
			return nil, err
		}
		m.Topic.Paper = core.Paper(paper)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
