package rcache

// Hooks receive fallback transitions and best-effort failures.
// Implementations must be cheap and non-blocking: they run inline with cache calls.
type Hooks interface {
	// The primary failed with a connectivity error and the cache switched to
	// the secondary. op is the operation that failed.
	FallbackEntered(op string, err error)

	// The fallback budget is spent and the next call goes to the primary.
	FallbackProbe()

	// A probe call succeeded on the primary; normal mode resumed.
	PrimaryRecovered()

	// The secondary cannot serve op; the call returned zero values.
	SecondaryUnsupported(op string)

	// Closing a node connection failed. Close still reports success.
	CloseError(node string, err error)
}

// NopHooks is the default.
type NopHooks struct{}

func (NopHooks) FallbackEntered(string, error) {}
func (NopHooks) FallbackProbe()                {}
func (NopHooks) PrimaryRecovered()             {}
func (NopHooks) SecondaryUnsupported(string)   {}
func (NopHooks) CloseError(string, error)      {}
