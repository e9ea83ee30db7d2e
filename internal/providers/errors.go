package providers

import "errors"

var (
	// ErrProviderNotFound is returned when no provider matches the lookup
	ErrProviderNotFound = errors.New("provider not found")

	ErrInvalidName      = errors.New("provider name is required")
	ErrInvalidRadius    = errors.New("service radius must be between 1 and 200 miles")
	ErrScheduleRequired = errors.New("operating days and hours are required")
	ErrInvalidClock     = errors.New("invalid time format, use HH:MM (e.g., 08:00)")
	ErrInvalidDay       = errors.New("invalid operating day")
	ErrSlugTaken        = errors.New("provider slug already exists")
)
