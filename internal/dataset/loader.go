package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"crosstab/internal/contracts"
)

// Default file names inside a data directory.
const (
	QuestionsFile = "questions.json"
	ResponsesFile = "responses.csv"
	ScopeFile     = "scope.md"
)

// Dataset is everything a session needs: the catalog, the response table,
// and the optional scope text.
type Dataset struct {
	Questions     []contracts.Question
	QuestionsByID map[string]contracts.Question
	Responses     *Table
	Scope         string
}

// Load reads questions.json, responses.csv, and scope.md from dir. A
// missing scope file is not an error; everything else is fatal.
func Load(dir string) (*Dataset, error) {
	questions, err := LoadQuestions(filepath.Join(dir, QuestionsFile))
	if err != nil {
		return nil, err
	}
	table, err := LoadResponses(filepath.Join(dir, ResponsesFile))
	if err != nil {
		return nil, err
	}
	scope, err := LoadScope(filepath.Join(dir, ScopeFile))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]contracts.Question, len(questions))
	for _, q := range questions {
		byID[q.QuestionID] = q
	}
	return &Dataset{
		Questions:     questions,
		QuestionsByID: byID,
		Responses:     table,
		Scope:         scope,
	}, nil
}

// LoadQuestions parses the catalog. The document is either a bare array of
// question objects or an object with a "questions" array; any other shape
// is a load-time error.
func LoadQuestions(path string) ([]contracts.Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions catalog: %w", err)
	}

	var asList []contracts.Question
	if err := json.Unmarshal(raw, &asList); err == nil {
		return validateQuestions(asList)
	}

	var asObject struct {
		Questions []contracts.Question `json:"questions"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Questions != nil {
		return validateQuestions(asObject.Questions)
	}

	return nil, fmt.Errorf("invalid questions catalog format in %s: expected an array or an object with a questions array", filepath.Base(path))
}

func validateQuestions(questions []contracts.Question) ([]contracts.Question, error) {
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("invalid question %q: %w", q.QuestionID, err)
		}
		if seen[q.QuestionID] {
			return nil, fmt.Errorf("duplicate question id %q", q.QuestionID)
		}
		seen[q.QuestionID] = true
	}
	return questions, nil
}

// LoadResponses reads the CSV response table. The header row holds
// question ids.
func LoadResponses(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open responses table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse responses table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("responses table %s has no header row", filepath.Base(path))
	}
	table, err := NewTable(records[0], records[1:])
	if err != nil {
		return nil, fmt.Errorf("responses table %s: %w", filepath.Base(path), err)
	}
	return table, nil
}

// LoadScope reads the optional scope text. Absence is not an error.
func LoadScope(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read scope text: %w", err)
	}
	return string(raw), nil
}
