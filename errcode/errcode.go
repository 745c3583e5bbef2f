package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes, one per disposition row in the error handling table.
const (
	OK Code = "ok"

	NoDriver          Code = "no_driver"
	UnknownAddressMap Code = "unknown_address_map"
	NvMemoryRead      Code = "nv_memory_read"
	NvMemoryWrite     Code = "nv_memory_write"
	DuplicateRole     Code = "duplicate_role"
	IdentityMismatch  Code = "identity_mismatch"
	MissingRole       Code = "missing_role"
	ShortBuffer       Code = "short_buffer"
	PostProcessFailed Code = "post_process_failed"
	TxRx              Code = "tx_rx"
	StateTransition   Code = "state_transition"

	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	NotReady       Code = "not_ready"
	Timeout        Code = "timeout"

	Error Code = "error" // generic fallback
)

// Disposition is what the real-time loop does when a Code surfaces.
type Disposition int

const (
	// Downgrade: log and skip this slave/cycle, keep running.
	Downgrade Disposition = iota
	// Abort: fail the operation that produced it (setup step, HTTP request), process stays up.
	Abort
	// Watchdog: counts toward the consecutive-failure watchdog; tripping it is fatal.
	Watchdog
	// Fatal: exit the process immediately.
	Fatal
)

// Disposition reports how the real-time loop should react to this code.
func (c Code) Disposition() Disposition {
	switch c {
	case TxRx:
		return Watchdog
	case StateTransition, NoDriver, UnknownAddressMap, NvMemoryRead, NvMemoryWrite,
		DuplicateRole, IdentityMismatch, MissingRole, ShortBuffer, PostProcessFailed:
		return Fatal
	default:
		return Abort
	}
}

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return e.Op + ": " + string(e.C) + ": " + e.Msg
	}
	return e.Op + ": " + string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E, keeping the original error as the cause.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
