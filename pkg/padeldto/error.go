package padeldto

import "fmt"

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// APIError is a non-2xx answer from the HTTP API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("padel api: %d %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("padel api: status %d", e.Status)
}
