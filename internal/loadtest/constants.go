package loadtest

import "time"

// HTTP status code constants.
const (
	StatusOK      = 200
	StatusCreated = 201
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	HealthCheckDelay     = 2 * time.Minute
	healthCheckRetry     = 500 * time.Millisecond
	PercentageMultiplier = 100
	pointsTolerance      = 0.005
)
