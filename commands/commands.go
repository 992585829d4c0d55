package commands

import "errors"

// CommandResponse is what every command prints: a status, the command's
// data on success and the error message on failure.
type CommandResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *CommandResponse {
	return &CommandResponse{
		Status: "ok",
		Data:   data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err error) *CommandResponse {
	return &CommandResponse{
		Status: "error",
		Error:  err.Error(),
	}
}

// Err returns the response's error, or nil for a successful response.
func (r *CommandResponse) Err() error {
	if r.Status != "error" {
		return nil
	}
	return errors.New(r.Error)
}
