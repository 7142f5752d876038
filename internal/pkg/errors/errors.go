package errors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalid              = errors.New("invalid")
	ErrInvalidPDF           = errors.New("invalid pdf url")
	ErrUpstream             = errors.New("upstream failure")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrStoryboardParse      = errors.New("storyboard parse failed")
	ErrTooMany              = errors.New("too many requests")
	ErrInternal             = errors.New("internal")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid) || errors.Is(err, ErrInvalidPDF)
}
