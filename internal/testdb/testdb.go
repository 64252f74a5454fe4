// Package testdb provides migrated SQLite databases and fixtures for tests.
package testdb

import (
	"context"
	"path/filepath"
	"testing"

	"civicbriefs/internal/core"
	"civicbriefs/internal/persistence"
)

// Open returns a migrated SQLite database in a temp dir, closed on cleanup.
func Open(t testing.TB) *persistence.SQLDB {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.Open(ctx, persistence.DriverSQLite, filepath.Join(t.TempDir(), "civicbriefs.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// Syllabus is a small topic set covering all four papers.
var Syllabus = []core.SyllabusTopic{
	{Paper: core.PaperGS1, Topic: "History", Keywords: "ancient medieval modern history freedom struggle mughal colonial"},
	{Paper: core.PaperGS2, Topic: "Polity", Keywords: "constitution parliament judiciary federalism supreme court amendment"},
	{Paper: core.PaperGS3, Topic: "Economy", Keywords: "inflation budget fiscal deficit monetary policy rbi gdp"},
	{Paper: core.PaperGS3, Topic: "Environment", Keywords: "climate biodiversity pollution emissions forest conservation"},
	{Paper: core.PaperGS4, Topic: "Ethics", Keywords: "integrity probity values attitude empathy accountability"},
}

// Pyqs is a small question archive matching Syllabus.
var Pyqs = []core.PyqQuestion{
	{Year: 2019, Paper: core.PaperGS2, Question: "Discuss the role of the Supreme Court in protecting federalism.", Keywords: "federalism supreme court constitution"},
	{Year: 2020, Paper: core.PaperGS3, Question: "How does fiscal deficit affect inflation in India?", Keywords: "fiscal deficit inflation budget"},
	{Year: 2021, Paper: core.PaperGS3, Question: "Examine the impact of climate change on biodiversity.", Keywords: "climate biodiversity environment"},
	{Year: 2018, Paper: core.PaperGS1, Question: "Assess the contribution of the freedom struggle to national unity.", Keywords: "freedom struggle history"},
}

// SeedSyllabus inserts copies of Syllabus and Pyqs and returns the stored topics.
func SeedSyllabus(t testing.TB, db persistence.Database) []core.SyllabusTopic {
	t.Helper()
	ctx := context.Background()
	topics := make([]core.SyllabusTopic, len(Syllabus))
	for i := range Syllabus {
		topics[i] = Syllabus[i]
		if err := db.Topics().Insert(ctx, &topics[i]); err != nil {
			t.Fatalf("seed topic: %v", err)
		}
	}
	for i := range Pyqs {
		q := Pyqs[i]
		if err := db.Pyqs().Insert(ctx, &q); err != nil {
			t.Fatalf("seed pyq: %v", err)
		}
	}
	return topics
}

// AddNews stores a news item and returns it with ID and Seq filled.
func AddNews(t testing.TB, db persistence.Database, title, url, content, summary string) core.NewsItem {
	t.Helper()
	item := core.NewsItem{Source: "test", Title: title, URL: url, RawContent: content, Summary: summary}
	created, err := db.News().Insert(context.Background(), &item)
	if err != nil || !created {
		t.Fatalf("add news %s: created=%v err=%v", url, created, err)
	}
	return item
}
