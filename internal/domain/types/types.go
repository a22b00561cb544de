// Package types contains the read shapes returned to the web layer.
package types

// Entry represents a leaderboard entry.
type Entry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"user_id"`
	Points float64 `json:"points"`
}

// ChartCell is one rendered chart difficulty.
type ChartCell struct {
	ChartID    string `json:"chart_id"`
	Difficulty string `json:"difficulty"`
	Level      string `json:"level"`
	Notes      string `json:"notes"`
	Exists     bool   `json:"exists"`
}

// DifficultyView is one difficulty column of a chart row. Rows carry nil for
// difficulties that are absent or hidden.
type DifficultyView struct {
	Level     string `json:"level"`
	Notes     string `json:"notes"`
	HasLegacy bool   `json:"has_legacy"`
}

// ChartView is one row of an active chart listing.
type ChartView struct {
	ID           string                     `json:"id"`
	Number       int                        `json:"number"`
	Era          int                        `json:"era"`
	Title        string                     `json:"title"`
	Category     string                     `json:"category,omitempty"`
	Limited      bool                       `json:"limited"`
	Deleted      bool                       `json:"deleted"`
	MaxNotes     int                        `json:"max_notes"`
	MaxDiff      string                     `json:"max_difficulty"`
	Difficulties map[string]*DifficultyView `json:"difficulties"`
}
