package services

import "errors"

var (
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrTestNotFound      = errors.New("test not found")
	ErrSectionNotFound   = errors.New("section not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrPlacementNotFound = errors.New("test question not found")
	ErrReportNotFound    = errors.New("report not found")

	ErrAlreadySubmitted   = errors.New("test already submitted")
	ErrSubmitInProgress   = errors.New("submission already in progress")
	ErrNegativeNotAllowed = errors.New("negative marking is not allowed for this test")
	ErrInvalidQuestion    = errors.New("invalid question")

	ErrMalformedSnapshot = errors.New("malformed question snapshot")
	ErrSnapshotMissing   = errors.New("question snapshot missing")
)
