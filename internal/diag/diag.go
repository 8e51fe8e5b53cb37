// Package diag carries the coded errors surfaced by the video pipeline.
//
// Every failure that reaches the user has a stable machine-readable Code and,
// where one is known, the file and line it refers to.
package diag

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

type Code string

const (
	CodeInvalidDocument         Code = "invalid_document"
	CodeInvalidTimestamp        Code = "invalid_timestamp"
	CodeInvalidFrontMatter      Code = "invalid_front_matter"
	CodeUnterminatedFrontMatter Code = "unterminated_front_matter"
	CodeMissingSource           Code = "missing_source"
	CodeOutputCollides          Code = "output_collides_with_source"
	CodeOutputExists            Code = "output_exists"
	CodeProbeFailed             Code = "probe_failed"
	CodeTitleCardStepFailed     Code = "title_card_step_failed"
	CodeEncoderFailed           Code = "encoder_failed"
	CodeIO                      Code = "io_error"
)

// Error is a pipeline failure tagged with a Code.
type Error struct {
	Code Code
	Path string
	Line int
	// Step names the external step for title_card_step_failed.
	Step string
	// Exit is the child exit status for tool failures, -1 when unknown.
	Exit int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
	} else if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// WithPath returns a copy of err with Path set when err is an *Error without one.
func WithPath(err error, path string) error {
	var de *Error
	if !errors.As(err, &de) || de.Path != "" {
		return err
	}
	cp := *de
	cp.Path = path
	return &cp
}

func InvalidDocument(line int, format string, args ...any) error {
	return &Error{Code: CodeInvalidDocument, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func InvalidTimestamp(line int, span string, err error) error {
	return &Error{Code: CodeInvalidTimestamp, Line: line, Msg: fmt.Sprintf("bad range %q", span), Err: err}
}

func InvalidFrontMatter(line int, err error) error {
	return &Error{Code: CodeInvalidFrontMatter, Line: line, Msg: "front matter is not valid YAML", Err: err}
}

func UnterminatedFrontMatter() error {
	return &Error{Code: CodeUnterminatedFrontMatter, Line: 1, Msg: "missing closing ---"}
}

func MissingSource(line int, id string) error {
	return &Error{Code: CodeMissingSource, Line: line, Msg: fmt.Sprintf("source %q is not declared", id)}
}

func OutputCollidesWithSource(path string) error {
	return &Error{Code: CodeOutputCollides, Path: path, Msg: "output path is also a source"}
}

func OutputExists(path string) error {
	return &Error{Code: CodeOutputExists, Path: path, Msg: "output already exists (use --force)"}
}

func ProbeFailed(path string, err error) error {
	return &Error{Code: CodeProbeFailed, Path: path, Exit: ExitStatus(err), Err: err}
}

func TitleCardStepFailed(step string, err error) error {
	return &Error{Code: CodeTitleCardStepFailed, Step: step, Exit: ExitStatus(err), Msg: "step " + step, Err: err}
}

func EncoderFailed(err error) error {
	exit := ExitStatus(err)
	return &Error{Code: CodeEncoderFailed, Exit: exit, Msg: fmt.Sprintf("exit %d", exit), Err: err}
}

func IO(path string, err error) error {
	return &Error{Code: CodeIO, Path: path, Err: err}
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ExitStatus returns the exit code of an *exec.ExitError in err's chain, or -1.
func ExitStatus(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// ExitCode maps err to a process exit status. The encoder's own status is
// surfaced verbatim; everything else exits 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var de *Error
	if errors.As(err, &de) && de.Code == CodeEncoderFailed && de.Exit > 0 {
		return de.Exit
	}
	return 1
}
