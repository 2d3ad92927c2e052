package service

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrPermission = errors.New("only the author can modify this recipe")
	ErrSelfFollow = errors.New("you can not follow yourself")

	ErrLoginUserNotFound         = errors.New("user not found")
	ErrLoginPasswordDoesNotMatch = errors.New("password does not match")
)

// ValidationError reports user-correctable input problems with field-level detail.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

// ConflictError reports a uniqueness violation: already favorited, already in the
// cart, already following. The DB unique constraint is the authoritative source,
// the pre-insert existence check only produces the friendlier message.
type ConflictError struct {
	Detail string
}

func (e *ConflictError) Error() string {
	return e.Detail
}
