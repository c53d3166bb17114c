package models

// Identity carries the network identity of the caller.
type Identity struct {
	SourceIP  string `json:"sourceIp"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Event is the normalized inbound request every helper reads parameters
// from. Lambdas build it from their native payloads (see the request
// package) so that API Gateway and scheduled invocations share one shape.
type Event struct {
	Source   string                 `json:"source,omitempty"`
	Headers  map[string]string      `json:"headers,omitempty"`
	Path     map[string]string      `json:"path,omitempty"`
	Body     map[string]interface{} `json:"body,omitempty"`
	Query    map[string]string      `json:"query,omitempty"`
	Identity Identity               `json:"identity"`
}
