package mapping

import (
	"context"
	"testing"

	"civicbriefs/internal/core"
	"civicbriefs/internal/llm"
	"civicbriefs/internal/persistence"
	"civicbriefs/internal/similarity"
	"civicbriefs/internal/summarize"
	"civicbriefs/internal/testdb"
)

func newMapper(db persistence.Database) *Mapper {
	engine := similarity.NewEngine()
	return NewMapper(db, engine, summarize.NewService(llm.Disabled{}, engine, summarize.Options{}))
}

func TestMapNewsToSyllabusEmpty(t *testing.T) {
	db := testdb.Open(t)
	m := newMapper(db)
	ctx := context.Background()

	n, err := m.MapNewsToSyllabus(ctx)
	if err != nil || n != 0 {
		t.Fatalf("no data: got %d, %v", n, err)
	}

	testdb.AddNews(t, db, "Budget", "https://news.test/b", "Budget day.", "")
	n, err = m.MapNewsToSyllabus(ctx)
	if err != nil || n != 0 {
		t.Fatalf("no topics: got %d, %v", n, err)
	}
}

func TestMapNewsToSyllabusRanksAndIsIdempotent(t *testing.T) {
	db := testdb.Open(t)
	testdb.SeedSyllabus(t, db)
	polity := testdb.AddNews(t, db,
		"Parliament passes constitution amendment on federalism",
		"https://news.test/polity", "",
		"The Supreme Court and parliament debated the constitution amendment.")
	history := testdb.AddNews(t, db,
		"Mughal history exhibition on the freedom struggle",
		"https://news.test/history", "",
		"Museum opens a colonial and medieval history gallery.")

	m := newMapper(db)
	ctx := context.Background()

	n, err := m.MapNewsToSyllabus(ctx)
	if err != nil {
		t.Fatalf("MapNewsToSyllabus: %v", err)
	}
	if n != 6 {
		t.Errorf("created = %d, want 6", n)
	}

	cases := []struct {
		item core.NewsItem
		want string
	}{
		{polity, "GS2: Polity"},
		{history, "GS1: History"},
	}
	for _, tc := range cases {
		matches, err := db.Mappings().TopicsForNews(ctx, tc.item.ID)
		if err != nil {
			t.Fatalf("TopicsForNews: %v", err)
		}
		if len(matches) != 3 {
			t.Fatalf("%s: %d mappings, want 3", tc.item.Title, len(matches))
		}
		if got := matches[0].Topic.Label(); got != tc.want {
			t.Errorf("%s: best topic = %s, want %s", tc.item.Title, got, tc.want)
		}
		for _, mt := range matches {
			if mt.Score < 0 || mt.Score > 1 {
				t.Errorf("score %v out of range", mt.Score)
			}
		}
	}

	again, err := m.MapNewsToSyllabus(ctx)
	if err != nil || again != 0 {
		t.Errorf("second run created %d, %v; want 0", again, err)
	}
}

func TestMapNewsToSyllabusFillsMissingSummary(t *testing.T) {
	db := testdb.Open(t)
	testdb.SeedSyllabus(t, db)
	item := testdb.AddNews(t, db, "Monetary policy review", "https://news.test/rbi",
		"The RBI held the repo rate steady. Inflation stayed above target. The fiscal deficit narrowed in the budget.", "")

	if _, err := newMapper(db).MapNewsToSyllabus(context.Background()); err != nil {
		t.Fatalf("MapNewsToSyllabus: %v", err)
	}

	stored, err := db.News().Get(context.Background(), item.ID)
	if err != nil || stored == nil {
		t.Fatalf("Get: %v, %v", stored, err)
	}
	if stored.Summary == "" {
		t.Error("summary was not filled")
	}
}

func TestMapNewsToSyllabusHistoryOverPolity(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	for _, topic := range []core.SyllabusTopic{
		{Paper: core.PaperGS1, Topic: "History"},
		{Paper: core.PaperGS2, Topic: "Polity"},
	} {
		if err := db.Topics().Insert(ctx, &topic); err != nil {
			t.Fatalf("insert topic: %v", err)
		}
	}
	item := testdb.AddNews(t, db, "ancient history temple", "https://news.test/temple", "", "ancient history temple")

	n, err := newMapper(db).MapNewsToSyllabus(ctx)
	if err != nil {
		t.Fatalf("MapNewsToSyllabus: %v", err)
	}
	if n != 2 {
		t.Errorf("created = %d, want 2", n)
	}

	matches, err := db.Mappings().TopicsForNews(ctx, item.ID)
	if err != nil {
		t.Fatalf("TopicsForNews: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %+v, want 2", matches)
	}
	if got := matches[0].Topic.Label(); got != "GS1: History" {
		t.Errorf("best topic = %s, want GS1: History", got)
	}
	if matches[0].Score <= matches[1].Score {
		t.Errorf("history score %v should beat polity score %v", matches[0].Score, matches[1].Score)
	}
}
