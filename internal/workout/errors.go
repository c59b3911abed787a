package workout

import "errors"

// Precondition sentinels. LogSet and the lifecycle operations wrap these in a
// *PreconditionError; callers test them with errors.Is.
var (
	ErrRestActive           = errors.New("rest timer is active")
	ErrDuplicateSet         = errors.New("set already logged")
	ErrSetOutOfOrder        = errors.New("set number is not the next for this exercise")
	ErrUnknownExercise      = errors.New("exercise is not in the prescription")
	ErrInvalidSet           = errors.New("invalid set")
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionFinishing     = errors.New("session is finishing")
	ErrSessionSuperseded    = errors.New("session is no longer active in the store")
	ErrCoordinatorClosed    = errors.New("coordinator is closed")
	ErrRecoveryPending      = errors.New("recover has not completed")
	ErrPrescriptionNotFound = errors.New("prescription not found")
)

// PreconditionError is a rejected operation with no side effects. It is
// never fatal; the caller may retry once the condition clears.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PreconditionError) Unwrap() error { return e.Err }

// PersistenceError is a durable-store failure surfaced by Start, Recover or
// Finish. In-memory session state is left as it was before the call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": store: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

func precondition(op string, err error) error { return &PreconditionError{Op: op, Err: err} }
func persistence(op string, err error) error  { return &PersistenceError{Op: op, Err: err} }

// IsPrecondition reports whether err is a rejected precondition.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsPersistence reports whether err is a durable-store failure.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
