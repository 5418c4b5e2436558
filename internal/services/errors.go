package services

import (
	"errors"
	"fmt"

	"github.com/inovalupa/govtech-analyzer/internal/session"
)

// Validation errors. These are returned before any state change or network call.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrDuplicateEmail       = errors.New("email already in use")
	ErrInvalidUser          = errors.New("invalid user")
	ErrBootstrapAdmin       = errors.New("bootstrap admin cannot be removed")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmptyProjectName     = errors.New("project name is empty")
	ErrUnknownSpecialist    = errors.New("unknown specialist")
	ErrProjectNotFound      = errors.New("project not found")
	ErrFileNotFound         = errors.New("file not found")
	ErrNotArchived          = errors.New("file has no archived original")
	ErrNotPDF               = errors.New("only PDF files are accepted")
	ErrInvalidEntry         = errors.New("invalid audit entry")
	ErrEmptyPrompt          = errors.New("prompt is empty")
	ErrEmptyChat            = errors.New("nothing to archive")
	ErrUnsupportedTemplate  = errors.New("template must be markdown or PDF")

	ErrWeakPassword = fmt.Errorf("%w: password must have at least %d characters", ErrInvalidUser, minPasswordLen)
)

// External-service errors. Prior state is left untouched when these occur.
var (
	ErrAIService         = errors.New("AI service failure")
	ErrMalformedAnalysis = errors.New("malformed analysis response")
	ErrExtraction        = errors.New("text extraction failed")
)

// Session errors.
var (
	ErrBusy            = session.ErrBusy
	ErrNoActiveProject = session.ErrNoActiveProject
)
