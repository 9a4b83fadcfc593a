// Package quiz holds the immutable question pool and derives the
// per-session shuffled question sequences served to players.
package quiz

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Letters is the option letter alphabet, in display order.
const Letters = "ABCD"

// ErrNoQuestions reports an empty or fully unparseable question source.
var ErrNoQuestions = errors.New("no questions loaded")

// Question is one normalized record of the pool: a prompt, four
// options in A..D order and the letter of the correct option.
// Immutable once loaded.
type Question struct {
	Text    string    `yaml:"question"`
	Options [4]string `yaml:"-"`
	Answer  string    `yaml:"answer"`
}

// CorrectText returns the text of the correct option.
func (q Question) CorrectText() string {
	i := strings.IndexByte(Letters, q.Answer[0])
	return q.Options[i]
}

// Pool is the process-lifetime question list, shared read-only across
// all sessions.
type Pool struct {
	questions []Question
}

// NewPool wraps normalized questions into a pool.
func NewPool(questions []Question) (*Pool, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &Pool{questions: questions}, nil
}

// Len returns the pool size.
func (p *Pool) Len() int {
	return len(p.questions)
}

// Questions returns a copy of the pool's records.
func (p *Pool) Questions() []Question {
	out := make([]Question, len(p.questions))
	copy(out, p.questions)
	return out
}

// LoadFile loads a question bank from a CSV or YAML file. maxQuestions
// caps the loaded pool as a safeguard; zero or negative means no cap.
func LoadFile(path string, maxQuestions int) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question source: %w", err)
	}
	defer f.Close()

	var questions []Question
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		questions, err = parseYAML(f, maxQuestions)
	default:
		questions, err = parseCSV(f, maxQuestions)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return NewPool(questions)
}

// parseCSV reads the classic bank format: a header naming question,
// A, B, C, D and answer columns (case-insensitive), one record per row.
// Rows with an empty question are skipped.
func parseCSV(r io.Reader, max int) ([]Question, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var questions []Question
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		q := normalize(Question{
			Text: field(row, "question"),
			Options: [4]string{
				field(row, "a"),
				field(row, "b"),
				field(row, "c"),
				field(row, "d"),
			},
			Answer: field(row, "answer"),
		})
		if q.Text == "" {
			continue
		}
		questions = append(questions, q)
		if max > 0 && len(questions) >= max {
			break
		}
	}
	return questions, nil
}

// yamlQuestion mirrors one YAML bank entry.
type yamlQuestion struct {
	Question string `yaml:"question"`
	A        string `yaml:"a"`
	B        string `yaml:"b"`
	C        string `yaml:"c"`
	D        string `yaml:"d"`
	Answer   string `yaml:"answer"`
}

// parseYAML reads a YAML list of question records.
func parseYAML(r io.Reader, max int) ([]Question, error) {
	var raw []yamlQuestion
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	var questions []Question
	for _, entry := range raw {
		q := normalize(Question{
			Text:    strings.TrimSpace(entry.Question),
			Options: [4]string{entry.A, entry.B, entry.C, entry.D},
			Answer:  entry.Answer,
		})
		if q.Text == "" {
			continue
		}
		questions = append(questions, q)
		if max > 0 && len(questions) >= max {
			break
		}
	}
	return questions, nil
}

// normalize uppercases the answer letter and falls back to A whenever
// the letter is missing or out of range, matching the bank format's
// lenient contract.
func normalize(q Question) Question {
	for i := range q.Options {
		q.Options[i] = strings.TrimSpace(q.Options[i])
	}
	q.Answer = strings.ToUpper(strings.TrimSpace(q.Answer))
	if len(q.Answer) != 1 || !strings.Contains(Letters, q.Answer) {
		q.Answer = "A"
	}
	return q
}
