package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "serving" while the broadcast scheduler runs, "stopped" otherwise.
	State           string `json:"state"`
	SubscriberCount int    `json:"subscriber_count"`
	ConnectionCount int    `json:"connection_count"`
	Interval        string `json:"interval"` // time.Duration string, e.g. "1s"
	Version         string `json:"version"`
}

// SubscribersResponse is the payload for GET /api/v1/subscribers.
type SubscribersResponse struct {
	Subscribers []int64 `json:"subscribers"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
