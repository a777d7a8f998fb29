// Package prompt holds the validated prompt DTO, the canonical prompt name
// catalog, and an in-memory registry. Names are validated at construction so
// an invalid name never enters the system.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidName = errors.New("invalid prompt name")

const defaultVersion = "1.0"

// Prompt is the validated prompt DTO. Identity is Name; content, version and
// description change only by replacing the registry entry.
type Prompt struct {
	Name        string `json:"prompt_name"`
	Content     string `json:"content"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// New validates the name and builds a Prompt. An empty version defaults to
// "1.0".
func New(name, content, version, description string) (Prompt, error) {
	if err := ValidateName(name); err != nil {
		return Prompt{}, err
	}
	if version == "" {
		version = defaultVersion
	}
	return Prompt{
		Name:        name,
		Content:     content,
		Version:     version,
		Description: description,
	}, nil
}

// ValidateName rejects names that are empty, contain wildcard characters or
// spaces, hold any uppercase rune, or contain no lowercase letter at all
// (digit- or underscore-only names are invalid). Rejection only; no
// normalization.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: must be a non-empty string", ErrInvalidName)
	}
	if strings.ContainsAny(name, "*?%") {
		return fmt.Errorf("%w: cannot contain wildcard characters: %s", ErrInvalidName, name)
	}
	if strings.Contains(name, " ") || name != strings.ToLower(name) || !strings.ContainsFunc(name, unicode.IsLower) {
		return fmt.Errorf("%w: must be lowercase with underscores, got: %s", ErrInvalidName, name)
	}
	return nil
}
