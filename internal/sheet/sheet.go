// Package sheet holds small stateless worksheet helpers.
package sheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/safexl/safexl/internal/host"
)

// MaxNameLength is the longest worksheet name the host accepts.
const MaxNameLength = 31

// DefaultAnchor is the cell whose current region is measured.
const DefaultAnchor = "A1"

// ErrEmptyName is returned when nothing is left of a name after sanitizing.
var ErrEmptyName = errors.New("worksheet name cannot be empty")

var invalidName = strings.NewReplacer(
	`\`, "", "/", "", "*", "", "[", "", "]", "", ":", "", "?", "",
)

// SanitizeName strips the characters the host rejects in worksheet names and
// truncates the result to MaxNameLength characters.
func SanitizeName(name string) (string, error) {
	name = invalidName.Replace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if r := []rune(name); len(r) > MaxNameLength {
		name = string(r[:MaxNameLength])
	}
	return name, nil
}

// LastUsedRow returns the row count of the data block around A1. Data outside
// that contiguous block is not counted.
func LastUsedRow(ws host.Worksheet) (int, error) {
	rows, _, err := ws.CurrentRegion(DefaultAnchor)
	if err != nil {
		return 0, fmt.Errorf("measure rows: %w", err)
	}
	return rows, nil
}

// LastUsedColumn returns the column count of the data block around A1.
func LastUsedColumn(ws host.Worksheet) (int, error) {
	_, cols, err := ws.CurrentRegion(DefaultAnchor)
	if err != nil {
		return 0, fmt.Errorf("measure columns: %w", err)
	}
	return cols, nil
}
