package internal

import "errors"

var (
	ErrPartyNotFound   = errors.New("party not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrGuestQueueingDisabled = errors.New("guest queueing disabled")
)

// NoticeError is an error the caller is told about with an errorNotice.
// Errors not wrapped in a NoticeError are dropped silently.
type NoticeError struct {
	Code ServerErrorCode
	Text string
	Err  error
}

func (e *NoticeError) Error() string {
	return e.Text
}

func (e *NoticeError) Unwrap() error {
	return e.Err
}

var (
	errGuestQueueingDisabled = &NoticeError{
		Code: ErrorCodeGuestQueueingDisabled,
		Text: "The host has disabled guest queueing.",
		Err:  ErrGuestQueueingDisabled,
	}
	errNotHost = &NoticeError{
		Code: ErrorCodeNotPartyHost,
		Text: "You are not the host of this party.",
		Err:  ErrUnauthorized,
	}
	errPartyNotFound = &NoticeError{
		Code: ErrorCodePartyNotFound,
		Text: "Party not found",
		Err:  ErrPartyNotFound,
	}
)
