package model

import (
	"errors"
	"fmt"
)

// Entity kinds carried by NotFoundError.
const (
	KindTrack         = "Track"
	KindPlaylist      = "Playlist"
	KindPlaylistTrack = "Playlist track"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidPosition = errors.New("invalid track position")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrVersionConflict = errors.New("version conflict")
)

// NotFoundError is returned by lookups for an identity that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with ID: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidPositionError reports an insertion position outside [0, Length].
type InvalidPositionError struct {
	Position int
	Length   int
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("Invalid track position: %d. Position must be between 0 and %d", e.Position, e.Length)
}

func (e *InvalidPositionError) Is(target error) bool {
	return target == ErrInvalidPosition
}

// InvalidArgumentError reports a missing track or an empty track list.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return e.Reason
}

func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// ConflictError is returned when a playlist kept changing underneath a
// writer and the save could not be completed.
type ConflictError struct {
	ID       string
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Playlist %s was modified concurrently; gave up after %d attempts", e.ID, e.Attempts)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}
