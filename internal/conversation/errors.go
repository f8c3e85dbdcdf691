package conversation

import "errors"

var (
	// ErrUnknownSession is returned when a conversation id matches no live
	// session.
	ErrUnknownSession = errors.New("conversation: unknown session")
	// ErrSessionBusy is returned when a turn is already in flight for the
	// session. Turns are strictly serialized per session.
	ErrSessionBusy = errors.New("conversation: session busy")
	// ErrReasoningTimeout is returned when the model failed to answer within
	// the reasoning deadline after all retries.
	ErrReasoningTimeout = errors.New("conversation: reasoning timed out")
	// ErrServiceUnavailable is returned when the assistant cannot serve the
	// turn at all, for example when every LLM provider is down.
	ErrServiceUnavailable = errors.New("conversation: service unavailable")
)
