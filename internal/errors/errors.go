// Package errors formats SDPL compiler/runtime errors with source context,
// following the teacher's internal/errors package: a carried position, a
// source-line excerpt, and a caret pointing at the column.
package errors

import (
	"fmt"
	"strings"

	"github.com/cwbudde/go-sdpl/internal/token"
)

// Kind enumerates spec.md §7's error kinds.
type Kind int

const (
	LexErrorKind Kind = iota
	ParseErrorKind
	SemanticErrorKind
	EvalErrorKind
	IoErrorKind
	CancelErrorKind
)

func (k Kind) String() string {
	switch k {
	case LexErrorKind:
		return "LexError"
	case ParseErrorKind:
		return "ParseError"
	case SemanticErrorKind:
		return "SemanticError"
	case EvalErrorKind:
		return "EvalError"
	case IoErrorKind:
		return "IoError"
	case CancelErrorKind:
		return "CancelError"
	}
	return "Error"
}

// StepError is a single diagnostic tied to a source position, rendered the
// way spec.md §7 requires: "<kind>: <message> at <file>:<line>:<col>".
type StepError struct {
	Kind    Kind
	Message string
	File    string
	Pos     token.Position
}

func NewStepError(kind Kind, message, file string, pos token.Position) *StepError {
	return &StepError{Kind: kind, Message: message, File: file, Pos: pos}
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s at %s:%d:%d", e.Kind, e.Message, e.File, e.Pos.Line, e.Pos.Col)
}

// Format renders e with a source-line excerpt and a caret, for interactive
// CLI output (mirrors the teacher's CompilerError.Format).
func (e *StepError) Format(source string) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n")

	lines := strings.Split(source, "\n")
	if e.Pos.Line >= 1 && e.Pos.Line <= len(lines) {
		line := lines[e.Pos.Line-1]
		prefix := fmt.Sprintf("%4d | ", e.Pos.Line)
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteString("\n")
		col := e.Pos.Col - 1
		if col < 0 {
			col = 0
		}
		sb.WriteString(strings.Repeat(" ", len(prefix)+col))
		sb.WriteString("^\n")
	}
	return sb.String()
}

// FormatAll renders every error in errs against source, concatenated.
func FormatAll(errs []*StepError, source string) string {
	var sb strings.Builder
	for _, e := range errs {
		sb.WriteString(e.Format(source))
	}
	return sb.String()
}

// IsCancel reports whether err is (or wraps) a CancelError, the only kind
// that aborts the whole program rather than just the offending step
// (spec.md §7).
func IsCancel(err *StepError) bool { return err != nil && err.Kind == CancelErrorKind }
