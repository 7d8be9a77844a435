package engine

import "time"

// Status classifies the outcome of a processed command.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusUnknown  Status = "unknown"
	StatusNotFound Status = "not_found"
	StatusDisabled Status = "disabled"
)

// Response is the structured result of processing one command. Every
// call to [Engine.ProcessCommand] returns a well-formed Response; the
// engine never propagates a panic or error to its caller.
type Response struct {
	Status     Status         `json:"status"`
	Action     string         `json:"action,omitempty"`
	Message    string         `json:"message"`
	Intent     string         `json:"intent,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Source     string         `json:"source,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
	Commands   []string       `json:"commands,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// success builds a success response for an action.
func success(action, message string) Response {
	return Response{
		Status:    StatusSuccess,
		Action:    action,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// withData attaches an action payload.
func (r Response) withData(data map[string]any) Response {
	r.Data = data
	return r
}
