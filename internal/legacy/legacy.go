// Package legacy reads the flat credential file that predates the users table.
//
// Each line holds one record:
//
//	username,password_hash[,role]
//
// Surrounding whitespace on a line is ignored and blank lines are skipped.
package legacy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"intelligencePlatform/models"
)

// ErrMalformedRecord marks a line that cannot be turned into a Record.
var ErrMalformedRecord = errors.New("malformed legacy record")

// Record is one credential taken from the legacy file.
type Record struct {
	Line         int
	Username     string
	PasswordHash string
	Role         string
}

// ParseLine parses a single trimmed, non-empty line.
// The role defaults to "user" when the third field is missing or blank.
func ParseLine(line string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return Record{}, fmt.Errorf("%w: expected 2 or 3 fields, got %d", ErrMalformedRecord, len(parts))
	}
	rec := Record{
		Username:     strings.TrimSpace(parts[0]),
		PasswordHash: strings.TrimSpace(parts[1]),
		Role:         models.RoleUser,
	}
	if rec.Username == "" || rec.PasswordHash == "" {
		return Record{}, fmt.Errorf("%w: empty username or password hash", ErrMalformedRecord)
	}
	if len(parts) == 3 {
		if role := strings.TrimSpace(parts[2]); role != "" {
			rec.Role = role
		}
	}
	return rec, nil
}

// MaxLineLength bounds a single record line. Longer lines are reported as malformed.
const MaxLineLength = 64 * 1024

const byteOrderMark = "\ufeff"

// Scan calls fn for every non-blank line of r, in order.
// Parse failures, including lines over MaxLineLength, are handed to fn as an error
// wrapping ErrMalformedRecord together with the line number; returning a non-nil
// error from fn stops the scan. A leading byte order mark is ignored.
func Scan(r io.Reader, fn func(rec Record, parseErr error) error) error {
	br := bufio.NewReaderSize(r, MaxLineLength)
	lineNo := 0
	for {
		frag, isPrefix, err := br.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read legacy file: %w", err)
		}
		lineNo++

		var rec Record
		var parseErr error
		if isPrefix {
			if err := discardLine(br); err != nil {
				return fmt.Errorf("read legacy file: %w", err)
			}
			parseErr = fmt.Errorf("%w: line longer than %d bytes", ErrMalformedRecord, MaxLineLength)
		} else {
			line := string(frag)
			if lineNo == 1 {
				line = strings.TrimPrefix(line, byteOrderMark)
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			rec, parseErr = ParseLine(line)
		}
		rec.Line = lineNo
		if parseErr != nil {
			parseErr = fmt.Errorf("line %d: %w", lineNo, parseErr)
		}
		if err := fn(rec, parseErr); err != nil {
			return err
		}
	}
}

// discardLine skips the rest of an overlong line.
func discardLine(br *bufio.Reader) error {
	for {
		_, isPrefix, err := br.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil || !isPrefix {
			return err
		}
	}
}
