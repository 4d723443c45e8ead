package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidSearchURL = errors.New("invalid or unsupported search url")
	ErrVideoTooLong     = errors.New("video exceeds maximum duration")
	ErrVideoBanned      = errors.New("video is banned")
	ErrQueueFull        = errors.New("queue is full")
	ErrQueueBlocked     = errors.New("queue is blocked")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrBadIndex         = errors.New("queue index out of range")
	ErrStoreBusy        = errors.New("store temporarily unavailable")
	ErrNotFound         = errors.New("not found")
	ErrCircuitOpen      = errors.New("downloads suspended: too many recent failures")
)

// ThirdPartyError wraps a failure from an upstream metadata service such as
// a playlist resolver. Retryable at the caller's discretion.
type ThirdPartyError struct {
	Source string
	Err    error
}

func (e *ThirdPartyError) Error() string {
	return fmt.Sprintf("third party %s: %v", e.Source, e.Err)
}

func (e *ThirdPartyError) Unwrap() error {
	return e.Err
}

func (e *ThirdPartyError) Is(target error) bool {
	_, ok := target.(*ThirdPartyError)
	return ok
}

// DownloadErrorKind is the closed taxonomy of backend download failures.
type DownloadErrorKind int

const (
	DownloadGeneric DownloadErrorKind = iota
	DownloadPrivate
	DownloadUnavailable
	DownloadAgeRestricted
	DownloadBotDetected
)

func (k DownloadErrorKind) String() string {
	switch k {
	case DownloadPrivate:
		return "private_video"
	case DownloadUnavailable:
		return "video_unavailable"
	case DownloadAgeRestricted:
		return "age_restricted"
	case DownloadBotDetected:
		return "bot_detected"
	}
	return "generic"
}

// DownloadError is a backend failure normalized into the taxonomy. Callers
// switch on Kind to decide whether to retry, skip, or surface a message.
type DownloadError struct {
	Kind       DownloadErrorKind
	Msg        string
	RetryAfter time.Duration
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed (%s): %s", e.Kind, e.Msg)
}

// Is matches any DownloadError of the same kind, so the canonical targets
// below work with errors.Is.
func (e *DownloadError) Is(target error) bool {
	t, ok := target.(*DownloadError)
	return ok && t.Kind == e.Kind
}

// Transient reports whether the failure may resolve on retry. Only
// age-restricted and generic failures are treated as possibly transient.
func (e *DownloadError) Transient() bool {
	return e.Kind == DownloadAgeRestricted || e.Kind == DownloadGeneric
}

var (
	ErrDownloadGeneric  = &DownloadError{Kind: DownloadGeneric}
	ErrPrivateVideo     = &DownloadError{Kind: DownloadPrivate}
	ErrVideoUnavailable = &DownloadError{Kind: DownloadUnavailable}
	ErrAgeRestricted    = &DownloadError{Kind: DownloadAgeRestricted}
	ErrBotDetected      = &DownloadError{Kind: DownloadBotDetected}
)

// ObjectStorageError is the single failure type surfaced by the object
// store abstraction. The core does not interpret provider errors beyond it.
type ObjectStorageError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectStorageError) Error() string {
	return fmt.Sprintf("object storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectStorageError) Unwrap() error {
	return e.Err
}

func (e *ObjectStorageError) Is(target error) bool {
	_, ok := target.(*ObjectStorageError)
	return ok
}
