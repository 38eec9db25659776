// Package lexicon loads the static list of suspicious terms and matches it
// against email bodies.
package lexicon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyLexicon is returned when a lexicon source holds no usable terms
var ErrEmptyLexicon = errors.New("lexicon contains no terms")

// source is the on-disk shape of a lexicon file, JSON or YAML
type source struct {
	Words []string `json:"words" yaml:"words"`
}

// Lexicon is an immutable set of suspicious terms
type Lexicon struct {
	terms map[string]struct{}
}

// Load reads a lexicon from a .json, .yaml or .yml file. A missing file,
// malformed content or an empty term set is an error.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}

	var src source
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &src)
	default:
		err = json.Unmarshal(data, &src)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}

	lex, err := New(src.Words)
	if err != nil {
		return nil, fmt.Errorf("invalid lexicon %s: %w", path, err)
	}
	return lex, nil
}

// New builds a lexicon from a list of terms. Blank terms are skipped.
func New(words []string) (*Lexicon, error) {
	terms := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		terms[w] = struct{}{}
	}

	if len(terms) == 0 {
		return nil, ErrEmptyLexicon
	}

	return &Lexicon{terms: terms}, nil
}

// Size returns the number of distinct terms
func (l *Lexicon) Size() int {
	return len(l.terms)
}

// Contains reports whether token is exactly one of the terms
func (l *Lexicon) Contains(token string) bool {
	_, ok := l.terms[token]
	return ok
}

// Match returns, in body order and with repeats, every whitespace token of
// body that is a term of the lexicon. The result is never nil.
func (l *Lexicon) Match(body string) []string {
	matched := make([]string, 0)
	for _, token := range strings.Fields(body) {
		if l.Contains(token) {
			matched = append(matched, token)
		}
	}
	return matched
}
