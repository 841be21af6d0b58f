package errors

import "fmt"

var (
	ErrBackendUnavailable = fmt.Errorf("backend unavailable")
	ErrSubscriptionFailed = fmt.Errorf("subscription could not be established")
	ErrWriteRejected      = fmt.Errorf("write rejected")
	ErrNotFound           = fmt.Errorf("not found")
	ErrSelfDirectRoom     = fmt.Errorf("a direct room needs two distinct users")
	ErrUnknownLocalID     = fmt.Errorf("unknown local message id")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
