package svc

import "errors"

// ErrUnknownFeedFamily is returned when feed.family names no registered family.
var ErrUnknownFeedFamily = errors.New("unknown feed family")

// ErrStorageInitFailed wraps any failure to open a configured mirror.
var ErrStorageInitFailed = errors.New("storage initialization failed")
