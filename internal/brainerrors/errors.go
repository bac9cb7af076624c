// Package brainerrors defines the error-kind taxonomy from the coordination
// kernel's error handling design: transient-input, config/calibration,
// planning, driver, and programmer-invariant errors. Callers use
// errors.Is/errors.As against the sentinels below.
package brainerrors

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientInput covers a missing camera frame, an undetected
	// landmark, or an absent motor-speed variable in a driver event.
	// Policy: skip the iteration, keep the previous estimate.
	ErrTransientInput = errors.New("transient input unavailable")

	// ErrCalibration covers a capture source that cannot be opened, or a
	// homography not yet established. Fatal to vision startup.
	ErrCalibration = errors.New("calibration required or unavailable")

	// ErrPlanning covers "no path found" for the current goal/map. Not
	// fatal: the loop continues so a later replan can succeed.
	ErrPlanning = errors.New("no path found")

	// ErrDriver covers a refused or reset driver connection. Surfaced as a
	// warning; the outer run exits after releasing modules.
	ErrDriver = errors.New("driver connection error")

	// ErrInvariant marks a violated invariant (e.g. theta escaping
	// (-pi, pi] after wrapping). Treated as a programmer bug.
	ErrInvariant = errors.New("invariant violated")
)

// Transientf wraps ErrTransientInput with contextual detail.
func Transientf(format string, args ...any) error {
	return wrapf(ErrTransientInput, format, args...)
}

// Calibrationf wraps ErrCalibration with contextual detail.
func Calibrationf(format string, args ...any) error {
	return wrapf(ErrCalibration, format, args...)
}

// Planningf wraps ErrPlanning with contextual detail.
func Planningf(format string, args ...any) error {
	return wrapf(ErrPlanning, format, args...)
}

// Driverf wraps ErrDriver with contextual detail.
func Driverf(format string, args ...any) error {
	return wrapf(ErrDriver, format, args...)
}

// Invariantf wraps ErrInvariant with contextual detail.
func Invariantf(format string, args ...any) error {
	return wrapf(ErrInvariant, format, args...)
}

func wrapf(sentinel error, format string, args ...any) error {
	return &wrappedError{sentinel: sentinel, detail: fmt.Sprintf(format, args...)}
}

type wrappedError struct {
	sentinel error
	detail   string
}

func (e *wrappedError) Error() string {
	if e.detail == "" {
		return e.sentinel.Error()
	}
	return e.sentinel.Error() + ": " + e.detail
}

func (e *wrappedError) Unwrap() error {
	return e.sentinel
}
