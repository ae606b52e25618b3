package experience

import (
	"encoding/json"
	"os"

	"github.com/jonathan/resume-evidence/internal/schemas"
	"github.com/jonathan/resume-evidence/internal/types"
)

// LoadRecords loads a record bank from a JSON file, validates it against the record bank
// schema and checks its structure
func LoadRecords(path string) (*types.RecordBank, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return ParseRecords(path, content)
}

// ParseRecords decodes and checks a record bank already in memory. name labels errors.
func ParseRecords(name string, content []byte) (*types.RecordBank, error) {
	var bank types.RecordBank
	if err := json.Unmarshal(content, &bank); err != nil {
		return nil, &LoadError{Path: name, Cause: err}
	}
	if err := schemas.Validate(schemas.RecordBank, content); err != nil {
		return nil, &LoadError{Path: name, Cause: err}
	}

	if err := ValidateBank(&bank); err != nil {
		return nil, err
	}
	return &bank, nil
}
