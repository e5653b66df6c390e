package cli

import "errors"

// loggedError marks an error the application layer has already logged with
// its context.
type loggedError struct{ err error }

func (e loggedError) Error() string { return e.err.Error() }
func (e loggedError) Unwrap() error { return e.err }

func logged(err error) error {
	if err == nil {
		return nil
	}
	return loggedError{err: err}
}

// Logged reports whether err was already written to the log, so the caller
// only needs to set the exit status.
func Logged(err error) bool {
	var le loggedError
	return errors.As(err, &le)
}
