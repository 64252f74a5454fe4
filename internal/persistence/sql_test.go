package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"civicbriefs/internal/core"

	"github.com/google/go-cmp/cmp"
)

func openTestDB(t *testing.T) *SQLDB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	status, err := NewMigrationManager(db).Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status) == 0 || !status[0].Applied || status[0].Description != "initial schema" {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestNewsInsertDeduplicatesByURL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := &core.NewsItem{Source: "a", Title: "One", URL: "https://x.test/1", RawContent: "c"}
	created, err := db.News().Insert(ctx, first)
	if err != nil || !created {
		t.Fatalf("Insert = %v, %v; want created", created, err)
	}
	if first.ID != core.NewsID(first.URL) || first.Seq == 0 {
		t.Errorf("ID/Seq not populated: %+v", first)
	}

	dup := &core.NewsItem{Source: "b", Title: "One again", URL: "https://x.test/1"}
	created, err = db.News().Insert(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate Insert: %v", err)
	}
	if created {
		t.Error("duplicate URL should not create a row")
	}

	n, _ := db.News().Count(ctx)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	got, err := db.News().GetByURL(ctx, "https://x.test/1")
	if err != nil || got == nil || got.Source != "a" {
		t.Errorf("GetByURL = %+v, %v", got, err)
	}
}

func TestNewsConcurrentInsertSameURL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := db.News().Insert(ctx, &core.NewsItem{Title: "t", URL: "https://x.test/race"})
			if err != nil {
				t.Errorf("Insert: %v", err)
				return
			}
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if createdCount != 1 {
		t.Errorf("created %d rows, want 1", createdCount)
	}
}

func TestNewsRecentAndLookups(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		if _, err := db.News().Insert(ctx, &core.NewsItem{Title: u, URL: u}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := db.News().Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, n := range recent {
		titles = append(titles, n.Title)
	}
	if diff := cmp.Diff([]string{"u3", "u4"}, titles); diff != "" {
		t.Errorf("Recent mismatch (-want +got):\n%s", diff)
	}

	missing, err := db.News().Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Get missing = %v, %v; want nil, nil", missing, err)
	}

	if err := db.News().UpdateSummary(ctx, "nope", "s"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSummary missing = %v, want ErrNotFound", err)
	}
	id := core.NewsID("u1")
	if err := db.News().UpdateContent(ctx, id, "full text", "short"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.News().Get(ctx, id)
	if got.RawContent != "full text" || got.Summary != "short" {
		t.Errorf("UpdateContent not applied: %+v", got)
	}
}

func TestMappingsUniqueAndJoined(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	item := &core.NewsItem{Title: "t", URL: "u"}
	db.News().Insert(ctx, item)
	polity := &core.SyllabusTopic{Paper: core.PaperGS2, Topic: "Polity", Keywords: "constitution"}
	economy := &core.SyllabusTopic{Paper: core.PaperGS3, Topic: "Economy", Keywords: "inflation"}
	for _, tp := range []*core.SyllabusTopic{polity, economy} {
		if err := db.Topics().Insert(ctx, tp); err != nil {
			t.Fatal(err)
		}
	}

	created, err := db.Mappings().Insert(ctx, core.Mapping{NewsID: item.ID, TopicID: polity.ID, Score: 0.4})
	if err != nil || !created {
		t.Fatalf("first mapping: %v %v", created, err)
	}
	created, err = db.Mappings().Insert(ctx, core.Mapping{NewsID: item.ID, TopicID: polity.ID, Score: 0.9})
	if err != nil || created {
		t.Fatalf("duplicate mapping: created=%v err=%v", created, err)
	}
	db.Mappings().Insert(ctx, core.Mapping{NewsID: item.ID, TopicID: economy.ID, Score: 0.6})

	matches, err := db.Mappings().TopicsForNews(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 || matches[0].Topic.Topic != "Economy" || matches[1].Score != 0.4 {
		t.Errorf("unexpected matches: %+v", matches)
	}
}

func TestCapsuleClaimAndSave(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c, err := db.Capsules().Claim(ctx, "2025-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 0 {
		t.Errorf("claimed capsule should be empty, got %v", c.Items)
	}

	items := []core.CapsuleItem{{Title: "A", URL: "u", Summary: "- s.", Topics: []core.CapsuleTopic{}, Pyqs: []core.RelatedPyq{}}}
	if err := db.Capsules().SaveItems(ctx, "2025-01-02", items); err != nil {
		t.Fatal(err)
	}
	again, err := db.Capsules().Claim(ctx, "2025-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(items, again.Items); diff != "" {
		t.Errorf("items mismatch after re-claim (-want +got):\n%s", diff)
	}

	if missing, err := db.Capsules().Get(ctx, "1999-01-01"); err != nil || missing != nil {
		t.Errorf("Get missing = %v, %v", missing, err)
	}

	db.Capsules().SaveItems(ctx, "2024-12-20", nil)
	since, err := db.Capsules().Since(ctx, "2024-12-25")
	if err != nil {
		t.Fatal(err)
	}
	if len(since) != 1 || since[0].Date != "2025-01-02" {
		t.Errorf("Since = %+v", since)
	}
}

func TestCapsuleMalformedJSONReadsEmpty(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.Capsules().Claim(ctx, "2025-02-01")
	if _, err := db.db.ExecContext(ctx, `UPDATE capsules SET items_json = '{broken' WHERE date = '2025-02-01'`); err != nil {
		t.Fatal(err)
	}
	c, err := db.Capsules().Get(ctx, "2025-02-01")
	if err != nil {
		t.Fatal(err)
	}
	if c.Items == nil || len(c.Items) != 0 {
		t.Errorf("malformed JSON should read as empty items, got %#v", c.Items)
	}
}

func TestPlanUpsertRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if p, err := db.Plans().Get(ctx, "u1"); err != nil || p != nil {
		t.Fatalf("Get missing = %v, %v", p, err)
	}

	plan := &core.StudyPlan{
		UserID: "u1", TargetYear: 2026, HoursPerWeek: 10, GeneratedOn: "2025-01-01",
		Weeks: []core.PlanWeek{{Index: 1, Hours: 10, Tasks: []string{"GS2: Polity"}}},
	}
	if err := db.Plans().Upsert(ctx, plan); err != nil {
		t.Fatal(err)
	}
	plan.HoursPerWeek = 9
	plan.Feedback = &core.FeedbackSummary{TestsConsidered: 1, AverageScore: 80, WeakTopics: []string{}}
	if err := db.Plans().Upsert(ctx, plan); err != nil {
		t.Fatal(err)
	}

	got, err := db.Plans().Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.HoursPerWeek != 9 || got.Feedback == nil || got.Feedback.AverageScore != 80 {
		t.Errorf("unexpected plan: %+v", got)
	}
	if diff := cmp.Diff(plan.Weeks, got.Weeks); diff != "" {
		t.Errorf("weeks mismatch (-want +got):\n%s", diff)
	}
}

func TestTestResultsOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for i, s := range []float64{40, 70, 90} {
		r := &core.TestResult{UserID: "u", TestName: "T", Score: s, Date: "2025-01-0" + string(rune('1'+i))}
		if err := db.TestResults().Append(ctx, r); err != nil || r.ID == 0 {
			t.Fatalf("Append: %v (id %d)", err, r.ID)
		}
	}
	db.TestResults().Append(ctx, &core.TestResult{UserID: "other", TestName: "T", Score: 10, Date: "2025-01-05"})

	recent, _ := db.TestResults().Recent(ctx, "u", 2)
	if len(recent) != 2 || recent[0].Score != 90 || recent[1].Score != 70 {
		t.Errorf("Recent = %+v", recent)
	}
	all, _ := db.TestResults().ListByUser(ctx, "u")
	if len(all) != 3 || all[0].Score != 40 {
		t.Errorf("ListByUser = %+v", all)
	}
	since, _ := db.TestResults().Since(ctx, "2025-01-03")
	if len(since) != 2 {
		t.Errorf("Since = %+v", since)
	}
}

func TestQuizSaveReplace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	q := &core.Quiz{Date: "2025-01-01", Name: "daily", Questions: []core.QuizQuestion{{Prompt: "first", Options: []string{"a", "b", "c", "d"}}}}
	if err := db.Quizzes().Save(ctx, q, false); err != nil {
		t.Fatal(err)
	}
	q2 := &core.Quiz{Date: "2025-01-01", Name: "daily", Questions: []core.QuizQuestion{{Prompt: "second", Options: []string{"a", "b", "c", "d"}}}}
	db.Quizzes().Save(ctx, q2, false)
	got, _ := db.Quizzes().Get(ctx, "2025-01-01", "daily")
	if got.Questions[0].Prompt != "first" {
		t.Errorf("save without replace overwrote quiz: %+v", got)
	}
	db.Quizzes().Save(ctx, q2, true)
	got, _ = db.Quizzes().Get(ctx, "2025-01-01", "daily")
	if got.Questions[0].Prompt != "second" {
		t.Errorf("replace did not overwrite: %+v", got)
	}
}

func TestChatRecentChronological(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, c := range []string{"m1", "m2", "m3"} {
		if err := db.Chats().Append(ctx, &core.ChatMessage{UserID: "u", SessionID: "s", Role: "user", Content: c}); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err := db.Chats().Recent(ctx, "u", "s", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "m2" || msgs[1].Content != "m3" {
		t.Errorf("Recent = %+v", msgs)
	}
}
