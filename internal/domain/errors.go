package domain

import "errors"

var (
	// ErrQuestionFetchFailed is recorded when the question source could not supply a usable question.
	ErrQuestionFetchFailed = errors.New("question fetch failed")
	// ErrOracleUnavailable marks an oracle call that failed or timed out; it is never surfaced to players.
	ErrOracleUnavailable = errors.New("outcome oracle unavailable")
	// ErrMalformedQuestion is returned for questions whose answer is not one of their options.
	ErrMalformedQuestion = errors.New("malformed question")
	// ErrInvalidDifficulty is returned for labels outside easy|medium|hard|insane.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrNoQuestions indicates the question pool is empty.
	ErrNoQuestions = errors.New("no questions available")
	// ErrMatchNotFound is returned when a match ID is unknown.
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchClosed is returned by operations on a match whose loop has stopped.
	ErrMatchClosed = errors.New("match closed")
)
