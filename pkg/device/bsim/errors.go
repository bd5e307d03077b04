package bsim

import "errors"

var (
	// ErrBadParameter is returned for an unknown parameter id or name.
	ErrBadParameter = errors.New("bsim: unknown parameter")

	// ErrFatalParameter is returned by setup when the validator rejects the parameter set.
	ErrFatalParameter = errors.New("bsim: fatal parameter error")

	// ErrNotBound is returned when stamping into a matrix the instance was never bound to.
	ErrNotBound = errors.New("bsim: matrix not bound")

	// ErrNotReady is returned when evaluating before Temperature resolved the parameters.
	ErrNotReady = errors.New("bsim: parameters not resolved")

	// ErrNoCheckpoint is returned when restoring an instance that holds no checkpoint.
	ErrNoCheckpoint = errors.New("bsim: no checkpoint")
)
