package testfeatures

import "time"

// Config holds configuration for the feature load test
type Config struct {
	BaseURL    string        // Base URL of the service
	EventsPath string        // Event table to submit
	BatchSize  int           // Events per POST /features/batch request
	Workers    int           // Number of concurrent workers
	Plays      int           // Distinct plays whose feed is fetched afterwards
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for extracted features
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// eventPayload is the request body of one event. Ball-carrier coordinates
// are omitted when unknown.
type eventPayload struct {
	GameID        int64    `json:"gameId"`
	PlayID        int64    `json:"playId"`
	FrameID       int64    `json:"frameId"`
	TacklerID     int64    `json:"tacklerId"`
	BallCarrierID int64    `json:"ballCarrierId"`
	TacklerX      float64  `json:"x_tackler"`
	TacklerY      float64  `json:"y_tackler"`
	BallCarrierX  *float64 `json:"x_ballCarrier,omitempty"`
	BallCarrierY  *float64 `json:"y_ballCarrier,omitempty"`
}

// Stats holds test statistics
type Stats struct {
	EventsRead       int
	EventsSubmitted  int
	BatchesSubmitted int
	BatchesFailed    int
	Extracted        int
	Duplicates       int
	Failed           int
	FailuresByReason map[string]int
	FeedsFetched     int
	FeedsFailed      int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
