package strategy

// Outcome is the single terminal result of one Authenticate call. Exactly
// one Outcome is produced per call; the concrete types form a closed set.
type Outcome interface {
	isOutcome()
}

// Success reports that authentication succeeded.
type Success struct {
	// User is whatever the verify func established as the authenticated
	// principal. Never nil.
	User interface{}

	// Info is optional additional information from the verify func.
	Info map[string]interface{}
}

// Fail reports that authentication did not succeed, as a normal recoverable
// outcome rather than a system fault: the provider required user
// interaction, or the verify func rejected the tokens.
type Fail struct {
	// Message optionally says why, e.g. "login_required".
	Message string

	// Status is an optional http status suggestion; 0 means the handler's
	// default applies.
	Status int
}

// Error reports a system fault: missing session support, a protocol or
// transport failure, or a verify func error.
type Error struct {
	Err error
}

// Redirect instructs the caller to redirect the user agent, kicking off the
// authorization flow.
type Redirect struct {
	URL string

	// Status is an optional http status suggestion; 0 means the handler's
	// default applies.
	Status int
}

func (Success) isOutcome()  {}
func (Fail) isOutcome()     {}
func (Error) isOutcome()    {}
func (Redirect) isOutcome() {}

// Unwrap returns the underlying error, so errors.Is/As work through an
// Error outcome.
func (e Error) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e Error) Error() string {
	if e.Err == nil {
		return "unknown authentication error"
	}
	return e.Err.Error()
}
