// Package chart resolves what a chart looked like as of a pivot date: which
// historical version applies, whether the chart counts as deleted, which
// charts are listed, and how withheld values render.
package chart

import (
	"strings"

	"github.com/okian/chartrank/internal/domain/errs"
)

// Difficulty is a closed enumeration of chart difficulty tiers.
type Difficulty int

// Difficulties in display order.
const (
	Easy Difficulty = iota
	Standard
	Hard
	Master
	Unlimited

	// NumDifficulties sizes per-difficulty arrays.
	NumDifficulties = 5
)

var difficultyCodes = [NumDifficulties]string{"ESY", "STD", "HRD", "MAS", "UNL"}

// Difficulties lists every difficulty in display order.
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Standard, Hard, Master, Unlimited}
}

// Code returns the three-letter code, e.g. "MAS".
func (d Difficulty) Code() string {
	if !d.Valid() {
		return "???"
	}
	return difficultyCodes[d]
}

func (d Difficulty) String() string { return d.Code() }

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Unlimited
}

// ParseDifficulty reads a difficulty code, case-insensitively.
func ParseDifficulty(code string) (Difficulty, error) {
	const op = "chart.parse_difficulty"
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, c := range difficultyCodes {
		if c == code {
			return Difficulty(i), nil
		}
	}
	return 0, errs.New(op, errs.KindNotFound, "unknown difficulty %q", code)
}

// MarshalText encodes the difficulty as its code.
func (d Difficulty) MarshalText() ([]byte, error) {
	return []byte(d.Code()), nil
}

// UnmarshalText decodes a difficulty code.
func (d *Difficulty) UnmarshalText(b []byte) error {
	v, err := ParseDifficulty(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
