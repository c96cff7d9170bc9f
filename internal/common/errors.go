// Package common defines shared constants and sentinel errors used across
// client and server layers of AuraChat. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Validation errors surfaced during registration.
	ErrUsernameTooShort = errors.New("username too short")
	ErrPasswordTooShort = errors.New("password too short")

	// Session errors.
	ErrAlreadyConnected = errors.New("user already connected")

	// Transfer errors.
	ErrTruncatedTransfer = errors.New("truncated transfer")
	ErrNotReady          = errors.New("receiver not ready")

	// Discovery errors.
	ErrDiscoveryTimeout = errors.New("discovery timed out")
)
