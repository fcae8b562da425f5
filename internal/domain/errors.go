package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the root of every "resource does not exist" error. Errors
// wrapping it are permanent and must never be retried.
var ErrNotFound = errors.New("not found")

var (
	ErrObjectNotFound   = fmt.Errorf("object %w", ErrNotFound)
	ErrTemplateNotFound = fmt.Errorf("template %w", ErrNotFound)
	ErrQueueNotFound    = fmt.Errorf("queue %w", ErrNotFound)
)
