package app

import "errors"

// ValidationError carries a user-facing rejection message for bad input.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

var (
	// ErrBookNotFound indicates the book id does not exist.
	ErrBookNotFound = errors.New("book not found")
	// ErrForbidden indicates the book belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken indicates a sign-up against an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNoReaderSession indicates a reader operation without an open book.
	ErrNoReaderSession = errors.New("no open reader session")
	// ErrNoCurrentLocation indicates a bookmark request before the first
	// relocation event produced a location identifier.
	ErrNoCurrentLocation = errors.New("no current location")
	// ErrBookLoadFailed indicates the stored binary could not be parsed.
	ErrBookLoadFailed = errors.New("failed to load book")
	// ErrBookmarkNotFound indicates the bookmark id does not exist.
	ErrBookmarkNotFound = errors.New("bookmark not found")
)
