package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is matched by any node response with status 404.
	ErrNotFound = errors.New("resource not found")
	// ErrWaitTimeout is returned when a submitted transaction does not commit in time.
	ErrWaitTimeout = errors.New("timed out waiting for transaction")
)

// APIError is a non successful node response.
type APIError struct {
	Status      int
	Message     string
	ErrorCode   string
	VMErrorCode *uint64
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("node returned status %d (%s): %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("node returned status %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Transient reports whether the same request may succeed later.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// TxFailedError is a committed transaction the Move VM aborted.
type TxFailedError struct {
	Hash     string
	VMStatus string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Hash, e.VMStatus)
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var payload struct {
		Message     string  `json:"message"`
		ErrorCode   string  `json:"error_code"`
		VMErrorCode *uint64 `json:"vm_error_code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		apiErr.Message = payload.Message
		apiErr.ErrorCode = payload.ErrorCode
		apiErr.VMErrorCode = payload.VMErrorCode
		return apiErr
	}
	apiErr.Message = http.StatusText(status)
	return apiErr
}
