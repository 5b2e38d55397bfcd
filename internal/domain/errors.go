package domain

import "errors"

var (
	// ErrSubjectNotFound indicates no question bank exists for the subject.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrEmptyQuizSet is returned when a fetched question set has no questions.
	ErrEmptyQuizSet = errors.New("quiz set is empty")
	// ErrUserNotFound indicates the matriculation number is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is returned when no attempt is active for the user.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrNoSelection is returned when an answer is committed without a selected option.
	ErrNoSelection = errors.New("no option selected")
	// ErrAlreadyRevealed rejects selection changes after the answer was checked.
	ErrAlreadyRevealed = errors.New("answer already revealed")
	// ErrNotRevealed rejects advancing past a question that was neither checked nor skipped.
	ErrNotRevealed = errors.New("answer not yet revealed")
	// ErrPositionOutOfRange rejects jumps outside the question set.
	ErrPositionOutOfRange = errors.New("question position out of range")
	// ErrSubjectMismatch is returned when a resume snapshot names a different subject.
	ErrSubjectMismatch = errors.New("snapshot subject does not match quiz set")
	// ErrSessionFinished rejects operations on an attempt that was already finalized.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrNoSnapshot indicates there is no resume point for the user.
	ErrNoSnapshot = errors.New("no saved session to resume")
)
