// Package seed loads the syllabus and the archived question bank from YAML or JSON files.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/persistence"

	"gopkg.in/yaml.v3"
)

// Report counts the rows inserted by Load.
type Report struct {
	Topics int `json:"topics"`
	Pyqs   int `json:"pyqs"`
}

// Load inserts topics and questions from the given files. Each table is seeded
// only while it is empty; a missing file is skipped.
func Load(ctx context.Context, db persistence.Database, syllabusPath, pyqPath string) (*Report, error) {
	report := &Report{}

	n, err := db.Topics().Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 && syllabusPath != "" {
		topics, err := ReadTopics(syllabusPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		for i := range topics {
			if err := db.Topics().Insert(ctx, &topics[i]); err != nil {
				return nil, fmt.Errorf("failed to insert topic %q: %w", topics[i].Topic, err)
			}
			report.Topics++
		}
	}

	n, err = db.Pyqs().Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 && pyqPath != "" {
		questions, err := ReadPyqs(pyqPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		for i := range questions {
			if err := db.Pyqs().Insert(ctx, &questions[i]); err != nil {
				return nil, fmt.Errorf("failed to insert question %d/%s: %w", questions[i].Year, questions[i].Paper, err)
			}
			report.Pyqs++
		}
	}

	if report.Topics > 0 || report.Pyqs > 0 {
		logger.Info("Seeded reference data", "topics", report.Topics, "pyqs", report.Pyqs)
	}
	return report, nil
}

// ReadTopics parses a syllabus file and validates every paper code.
func ReadTopics(path string) ([]core.SyllabusTopic, error) {
	var topics []core.SyllabusTopic
	if err := decodeFile(path, &topics); err != nil {
		return nil, err
	}
	for i := range topics {
		paper, err := core.ParsePaper(string(topics[i].Paper))
		if err != nil {
			return nil, fmt.Errorf("%s: topic %d: %w", path, i+1, err)
		}
		topics[i].Paper = paper
		topics[i].ID = 0
		if strings.TrimSpace(topics[i].Topic) == "" {
			return nil, fmt.Errorf("%s: topic %d has no name", path, i+1)
		}
	}
	return topics, nil
}

// ReadPyqs parses a question archive file and validates every paper code.
func ReadPyqs(path string) ([]core.PyqQuestion, error) {
	var questions []core.PyqQuestion
	if err := decodeFile(path, &questions); err != nil {
		return nil, err
	}
	for i := range questions {
		paper, err := core.ParsePaper(string(questions[i].Paper))
		if err != nil {
			return nil, fmt.Errorf("%s: question %d: %w", path, i+1, err)
		}
		questions[i].Paper = paper
		questions[i].ID = 0
		if strings.TrimSpace(questions[i].Question) == "" {
			return nil, fmt.Errorf("%s: question %d has no text", path, i+1)
		}
	}
	return questions, nil
}

// decodeFile picks the decoder from the extension: .json is JSON, anything else YAML.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
