package types

import (
	"errors"
	"fmt"
)

// CompileError describes a query string that could not be compiled.
type CompileError struct {
	Query   string
	Pos     int
	Reason  string
	Details map[string]interface{}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid query %q at offset %d: %s", e.Query, e.Pos, e.Reason)
}

func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

func NewCompileError(query string, pos int, reason string) *CompileError {
	return &CompileError{
		Query:   query,
		Pos:     pos,
		Reason:  reason,
		Details: make(map[string]interface{}),
	}
}

func (e *CompileError) WithDetail(key string, value interface{}) *CompileError {
	e.Details[key] = value
	return e
}

// TopicError is a failure in one stage of a topic run.
type TopicError struct {
	TopicKey string
	Stage    string
	Err      error
}

func (e *TopicError) Error() string {
	return fmt.Sprintf("topic %s: %s failed: %v", e.TopicKey, e.Stage, e.Err)
}

func (e *TopicError) Unwrap() error {
	return e.Err
}

func NewTopicError(topicKey, stage string, err error) *TopicError {
	return &TopicError{TopicKey: topicKey, Stage: stage, Err: err}
}
