package domain

import "errors"

var (
	// ErrConnection: transport failed to establish or was lost.
	ErrConnection = errors.New("connection error")

	// ErrProtocol: welcome/auth response malformed or rejected.
	ErrProtocol = errors.New("protocol error")

	// ErrDecode: one envelope failed to parse. Never fatal for a session.
	ErrDecode = errors.New("decode error")

	// ErrMismatch: trade does not belong to the bucket's instrument.
	ErrMismatch = errors.New("instrument mismatch")
)
