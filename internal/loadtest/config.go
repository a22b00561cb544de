package loadtest

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Users       int           // Number of users to register
	Submissions int           // Number of skill submissions to send
	TopN        int           // Number of top entries to fetch
	Workers     int           // Number of concurrent workers
	MaxScore    int           // Upper bound of generated scores
	Timeout     time.Duration // HTTP request timeout
	OutputFile  string        // Output file for submissions
	LogFile     string        // Log file for test output
	Verbose     bool          // Enable verbose logging
}

// User is registered before any submission.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Display bool   `json:"display"`
}

// Submission is one skill record sent to PUT /users/{id}/skills/{unit}.
type Submission struct {
	UserID string `json:"user_id"`
	UnitID string `json:"unit_id"`
	Score  int    `json:"score"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"user_id"`
	Points float64 `json:"points"`
}

// Total is the stored total of one user.
type Total struct {
	UserID string  `json:"user_id"`
	Points float64 `json:"points"`
}

// chartRow keeps the difficulties of a listed chart; hidden ones are nil.
type chartRow struct {
	ID           string               `json:"id"`
	Difficulties map[string]*struct{} `json:"difficulties"`
}

type chartList struct {
	Charts []chartRow `json:"charts"`
}

// Stats holds run statistics.
type Stats struct {
	UnitsDiscovered      int
	UsersRegistered      int
	SubmissionsGenerated int
	SubmissionsSent      int
	SubmissionsOK        int
	SubmissionsRejected  int
	SubmissionsFailed    int
	RankingsRetrieved    int
	LeaderboardEntries   int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
