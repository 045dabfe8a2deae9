package service

import "errors"

var (
	// ErrJobRunning is returned when another run of the same job holds its lock.
	ErrJobRunning = errors.New("job already running")

	// ErrInvalidToken is returned for push tokens the provider would reject.
	ErrInvalidToken = errors.New("invalid push token")

	// ErrUnknownJob is returned by VisitService.Run for unrecognized job names.
	ErrUnknownJob = errors.New("unknown job")

	// ErrLikeNotFound is returned when removing a like that does not exist.
	ErrLikeNotFound = errors.New("like not found")

	// ErrReviewNotFound is returned for unknown reviews and for reviews the
	// caller did not write.
	ErrReviewNotFound = errors.New("review not found")

	// ErrNoMarketData is returned when an item has no stored trade history.
	ErrNoMarketData = errors.New("no market data for item")
)

// FieldError reports an invalid input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func fieldError(field, msg string) error {
	return &FieldError{Field: field, Message: msg}
}
