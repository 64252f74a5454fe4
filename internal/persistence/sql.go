package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SQLDB implements Database over database/sql for SQLite and PostgreSQL
type SQLDB struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType

	news        NewsRepository
	topics      TopicRepository
	pyqs        PyqRepository
	mappings    MappingRepository
	capsules    CapsuleRepository
	plans       PlanRepository
	testResults TestResultRepository
	quizzes     QuizRepository
	chats       ChatRepository
}

// Open connects to the database and verifies the connection. Call Migrate before use.
func Open(ctx context.Context, driver, dsn string) (*SQLDB, error) {
	var sb sq.StatementBuilderType
	switch driver {
	case DriverSQLite:
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000"
		}
	case DriverPostgres:
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite: one connection, writes are serialised.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLDB{db: db, driver: driver, sb: sb}
	s.news = &sqlNewsRepo{db: db, sb: sb}
	s.topics = &sqlTopicRepo{db: db, sb: sb}
	s.pyqs = &sqlPyqRepo{db: db, sb: sb}
	s.mappings = &sqlMappingRepo{db: db, sb: sb}
	s.capsules = &sqlCapsuleRepo{db: db, sb: sb}
	s.plans = &sqlPlanRepo{db: db, sb: sb}
	s.testResults = &sqlTestResultRepo{db: db, sb: sb}
	s.quizzes = &sqlQuizRepo{db: db, sb: sb}
	s.chats = &sqlChatRepo{db: db, sb: sb}
	return s, nil
}

func (s *SQLDB) News() NewsRepository              { return s.news }
func (s *SQLDB) Topics() TopicRepository           { return s.topics }
func (s *SQLDB) Pyqs() PyqRepository               { return s.pyqs }
func (s *SQLDB) Mappings() MappingRepository       { return s.mappings }
func (s *SQLDB) Capsules() CapsuleRepository       { return s.capsules }
func (s *SQLDB) Plans() PlanRepository             { return s.plans }
func (s *SQLDB) TestResults() TestResultRepository { return s.testResults }
func (s *SQLDB) Quizzes() QuizRepository           { return s.quizzes }
func (s *SQLDB) Chats() ChatRepository             { return s.chats }
func (s *SQLDB) Driver() string                    { return s.driver }

func (s *SQLDB) Close() error {
	return s.db.Close()
}

func (s *SQLDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// count runs SELECT COUNT(*) FROM table.
func count(ctx context.Context, db querier, sb sq.StatementBuilderType, table string) (int, error) {
	query, args, err := sb.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
