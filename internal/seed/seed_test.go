package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"civicbriefs/internal/core"
	"civicbriefs/internal/testdb"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const syllabusYAML = `
- paper: gs2
  topic: Polity
  keywords: constitution parliament judiciary
- paper: GS3
  topic: Economy
  keywords: inflation budget
`

const pyqJSON = `[
  {"year": 2019, "paper": "GS2", "question": "Discuss federalism.", "keywords": "federalism"}
]`

func TestReadTopicsYAML(t *testing.T) {
	topics, err := ReadTopics(writeFile(t, "syllabus.yaml", syllabusYAML))
	if err != nil {
		t.Fatalf("ReadTopics: %v", err)
	}
	want := []core.SyllabusTopic{
		{Paper: core.PaperGS2, Topic: "Polity", Keywords: "constitution parliament judiciary"},
		{Paper: core.PaperGS3, Topic: "Economy", Keywords: "inflation budget"},
	}
	if diff := cmp.Diff(want, topics); diff != "" {
		t.Errorf("topics (-want +got):\n%s", diff)
	}
}

func TestReadRejectsUnknownPaper(t *testing.T) {
	_, err := ReadPyqs(writeFile(t, "pyq.json", `[{"year": 2020, "paper": "GS9", "question": "x"}]`))
	if err == nil || !strings.Contains(err.Error(), "unknown paper") {
		t.Errorf("err = %v, want unknown paper", err)
	}
}

func TestLoadSeedsEmptyTablesOnce(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	syllabus := writeFile(t, "syllabus.yaml", syllabusYAML)
	pyqs := writeFile(t, "pyq.json", pyqJSON)

	report, err := Load(ctx, db, syllabus, pyqs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(&Report{Topics: 2, Pyqs: 1}, report); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}

	again, err := Load(ctx, db, syllabus, pyqs)
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if again.Topics != 0 || again.Pyqs != 0 {
		t.Errorf("second load inserted rows: %+v", again)
	}
	if n, _ := db.Topics().Count(ctx); n != 2 {
		t.Errorf("topic count = %d, want 2", n)
	}
}

func TestLoadSkipsMissingFiles(t *testing.T) {
	db := testdb.Open(t)
	dir := t.TempDir()
	report, err := Load(context.Background(), db, filepath.Join(dir, "none.yaml"), filepath.Join(dir, "none.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if report.Topics != 0 || report.Pyqs != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestShippedSeedFilesParse(t *testing.T) {
	topics, err := ReadTopics(filepath.Join("..", "..", "data", "seed", "syllabus.yaml"))
	if err != nil {
		t.Fatalf("ReadTopics: %v", err)
	}
	questions, err := ReadPyqs(filepath.Join("..", "..", "data", "seed", "pyq.yaml"))
	if err != nil {
		t.Fatalf("ReadPyqs: %v", err)
	}
	if len(topics) == 0 || len(questions) == 0 {
		t.Errorf("shipped seeds are empty: %d topics, %d questions", len(topics), len(questions))
	}
}
