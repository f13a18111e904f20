package napi

import "strconv"

// Status is a napi_status code returned by every ABI operation.
type Status uint32

const (
	StatusOK Status = iota
	StatusInvalidArg
	StatusObjectExpected
	StatusStringExpected
	StatusNameExpected
	StatusFunctionExpected
	StatusNumberExpected
	StatusBooleanExpected
	StatusArrayExpected
	StatusGenericFailure
	StatusPendingException
	StatusCancelled
	StatusEscapeCalledTwice
	StatusHandleScopeMismatch
	StatusCallbackScopeMismatch
	StatusQueueFull
	StatusClosing
	StatusBigIntExpected
	StatusDateExpected
	StatusArrayBufferExpected
	StatusDetachableArrayBufferExpected
	StatusWouldDeadlock
)

// Messages reported through napi_get_last_error_info, indexed by status.
var statusMessages = [...]string{
	StatusOK:                            "",
	StatusInvalidArg:                    "Invalid argument",
	StatusObjectExpected:                "An object was expected",
	StatusStringExpected:                "A string was expected",
	StatusNameExpected:                  "A string or symbol was expected",
	StatusFunctionExpected:              "A function was expected",
	StatusNumberExpected:                "A number was expected",
	StatusBooleanExpected:               "A boolean was expected",
	StatusArrayExpected:                 "An array was expected",
	StatusGenericFailure:                "Unknown failure",
	StatusPendingException:              "An exception is pending",
	StatusCancelled:                     "The async work item was cancelled",
	StatusEscapeCalledTwice:             "napi_escape_handle already called on scope",
	StatusHandleScopeMismatch:           "Invalid handle scope usage",
	StatusCallbackScopeMismatch:         "Invalid callback scope usage",
	StatusQueueFull:                     "Thread-safe function queue is full",
	StatusClosing:                       "Thread-safe function handle is closing",
	StatusBigIntExpected:                "A bigint was expected",
	StatusDateExpected:                  "A date was expected",
	StatusArrayBufferExpected:           "An arraybuffer was expected",
	StatusDetachableArrayBufferExpected: "A detachable arraybuffer was expected",
	StatusWouldDeadlock:                 "Main thread would deadlock",
}

// Message returns the human readable description of the status.
func (s Status) Message() string {
	if int(s) < len(statusMessages) {
		return statusMessages[s]
	}
	return "status " + strconv.FormatUint(uint64(s), 10)
}

// Error makes a non-ok Status usable as an error inside operation bodies.
func (s Status) Error() string {
	return "napi: " + s.Message()
}

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return s.Message()
}
