package merger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustland/ting.fm-sub000/pkg/storage"
)

var (
	// ErrEmptyInput is returned when there are no segments to merge. Nothing is uploaded.
	ErrEmptyInput = errors.New("no audio segments to merge")

	ErrEmptyPodcastID = errors.New("podcast ID is empty")
)

// NotFoundError names a segment locator that does not resolve to a stored object.
type NotFoundError struct {
	Locator string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("audio segment not found: %q", e.Locator)
}

func (e *NotFoundError) Unwrap() error { return storage.ErrNotFound }

// RetrievalError is a failure to read an existing segment's bytes (network, storage).
type RetrievalError struct {
	Locator string
	Err     error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve audio segment %q: %v", e.Locator, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// UploadError is a failure to persist the merged asset.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload merged audio %q: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// IsRetryable reports whether re-running the whole merge may succeed.
// Missing segments and empty input are permanent; retrieval and upload failures are not,
// unless the caller cancelled the context.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var retrieval *RetrievalError
	var upload *UploadError
	return errors.As(err, &retrieval) || errors.As(err, &upload)
}
