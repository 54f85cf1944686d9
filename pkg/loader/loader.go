// Package loader reads identifier lists from line-oriented text sources
// and turns them into positioned work items for the dispatch pool.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// CommentMarker prefixes lines that are skipped during loading.
const CommentMarker = "#"

// ErrInvalidIdentifier indicates a line that is not a valid easy id.
var ErrInvalidIdentifier = errors.New("invalid easy id")

// Identifier is a decimal account identifier of arbitrary magnitude.
// It is kept in string form so values beyond int64 range are never truncated.
type Identifier string

// ParseIdentifier validates a raw token as an identifier.
// Only unsigned decimal digit strings are accepted.
func ParseIdentifier(token string) (Identifier, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidIdentifier)
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, token)
		}
	}
	return Identifier(token), nil
}

// WorkItem pairs an identifier with its original input position.
// Pos counts loaded items only; comment and blank lines are not counted.
// A non-nil Err marks a line that failed identifier validation; such items
// still flow through the pool so the failure document accounts for them.
type WorkItem struct {
	Pos int
	Raw string
	ID  Identifier
	Err error
}

// Load reads work items from r, one identifier per line.
// Lines are trimmed; empty lines and lines starting with CommentMarker are
// skipped. Lines that fail validation yield work items carrying the parse
// error instead of being dropped.
func Load(r io.Reader, logger zerolog.Logger) ([]WorkItem, error) {
	scanner := bufio.NewScanner(r)
	// Identifiers may be arbitrarily large; allow long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var items []WorkItem
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, CommentMarker) {
			continue
		}

		item := WorkItem{Pos: len(items), Raw: line}
		id, err := ParseIdentifier(line)
		if err != nil {
			logger.Debug().Str("token", line).Err(err).Msg("Line failed identifier validation")
			item.Err = err
		} else {
			item.ID = id
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	logger.Info().Int("count", len(items)).Msg("Work items loaded")
	return items, nil
}

// LoadFile reads work items from the file at path.
func LoadFile(path string, logger zerolog.Logger) ([]WorkItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	return Load(f, logger)
}
