package chart

import (
	"fmt"
	"strconv"
)

// Placeholders rendered instead of absent or withheld values.
const (
	PlaceholderAbsent = "-"
	PlaceholderNotes  = "???"
)

// DefaultLevelFormat renders integer levels.
const DefaultLevelFormat = "%d"

// Formatter renders resolved specs for display.
type Formatter struct {
	// LevelFormat is a printf verb applied to known levels.
	LevelFormat string
}

// Level renders a level: absent and withheld both render as "-".
func (f Formatter) Level(sp Spec) string {
	if !sp.Offered {
		return PlaceholderAbsent
	}
	v, ok := sp.Level.Value()
	if !ok {
		return PlaceholderAbsent
	}
	format := f.LevelFormat
	if format == "" {
		format = DefaultLevelFormat
	}
	return fmt.Sprintf(format, v)
}

// Notes renders a note count: absent is "-", withheld is "???".
func (f Formatter) Notes(sp Spec) string {
	if !sp.Offered {
		return PlaceholderAbsent
	}
	v, ok := sp.Notes.Value()
	if !ok {
		return PlaceholderNotes
	}
	return strconv.Itoa(v)
}
