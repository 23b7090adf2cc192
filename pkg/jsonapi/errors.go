package jsonapi

import (
	"fmt"
	"io/fs"
)

// CommandError reports a failed create or exercise command.
type CommandError struct {
	Kind       string
	TemplateID string
	Choice     string
	Err        error
}

func (e *CommandError) Error() string {
	if e == nil {
		return "command failed"
	}
	return fmt.Sprintf("failed to %s command: %v", e.Kind, e.Err)
}

func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnexpectedEventError reports a transaction tree without the event a
// command was expected to produce.
type UnexpectedEventError struct {
	Expected string
	Got      string
}

func (e *UnexpectedEventError) Error() string {
	if e == nil {
		return "unexpected event"
	}
	if e.Got == "" {
		return fmt.Sprintf("expected %s but the transaction tree has no events", e.Expected)
	}
	return fmt.Sprintf("expected %s but got %s", e.Expected, e.Got)
}

// PartyCreationError reports a party that could neither be allocated nor
// found.
type PartyCreationError struct {
	Hint string
	Err  error
}

func (e *PartyCreationError) Error() string {
	if e == nil {
		return "failed to create party"
	}
	return fmt.Sprintf("failed to create party %q: %v", e.Hint, e.Err)
}

func (e *PartyCreationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FileNotFoundError reports a missing package file.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return "file not found: " + e.Path
}

// Is lets errors.Is(err, fs.ErrNotExist) match.
func (e *FileNotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}
