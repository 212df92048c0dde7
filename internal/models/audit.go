package models

// AuditEvent is the record published to the external log sink for every
// handled request. Delivery is best effort; a lost event never fails the
// request that produced it.
type AuditEvent struct {
	Timestamp     string `json:"timestamp"`
	LogType       string `json:"logType"`
	URL           string `json:"url"`
	CorrelationID string `json:"correlationId"`
	ServiceName   string `json:"serviceName"`
	Message       string `json:"message"`
	Method        string `json:"method"`
	StatusCode    int    `json:"statusCode"`
	DurationMs    int64  `json:"duration"`
}
