package app

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrEmailExists             = errors.New("email already exists")
	ErrInvalidCredential       = errors.New("invalid email or password")
	ErrWrongPassword           = errors.New("current password is incorrect")
	ErrUserInactive            = errors.New("user account is inactive")
	ErrUserNotFound            = errors.New("user not found")
	ErrGrantNotFound           = errors.New("grant not found")
	ErrApplicationNotFound     = errors.New("application not found")
	ErrDocumentNotFound        = errors.New("document not found")
	ErrEmptySearchQuery        = errors.New("Bitte geben Sie eine Projektbeschreibung an")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrApplicationLocked       = errors.New("application cannot be modified in its current status")
	ErrBudgetMismatch          = errors.New("requested funding plus own contribution must equal total budget")
	ErrFundingExceedsGrant     = errors.New("requested funding exceeds grant maximum")
	ErrSectionsIncomplete      = errors.New("application sections are incomplete")
	ErrUnknownSection          = errors.New("unknown section key")
	ErrQueueUnavailable        = errors.New("job queue unavailable")
	ErrFileTooLarge            = errors.New("file too large")
	ErrUnsupportedFile         = errors.New("unsupported file type")
)
