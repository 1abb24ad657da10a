package model

import "errors"

var (
	ErrPathTraversal    = errors.New("path escapes root directory")
	ErrNotFound         = errors.New("not found")
	ErrPortInUse        = errors.New("port already in use")
	ErrInvalidRoot      = errors.New("invalid root directory")
	ErrWatchUnavailable = errors.New("file watching unavailable")
	ErrPushSendFailure  = errors.New("push to client failed")
)
