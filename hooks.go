package stalecache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A backend read inside GetOrElse failed (or timed out) and was treated
	// as a miss.
	ReadSwallowed(storageKey string, err error)

	// A background refresh computed a value but could not store it.
	WriteSwallowed(storageKey string, err error)

	// A background refresh failed. delivered reports whether any caller was
	// awaiting the flight and received the error; when false the error goes
	// nowhere else.
	RefreshFailed(storageKey string, err error, delivered bool)

	// The backend replaced by SetBackend failed to close.
	BackendCloseFailed(cacheName string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ReadSwallowed(string, error)       {}
func (NopHooks) WriteSwallowed(string, error)      {}
func (NopHooks) RefreshFailed(string, error, bool) {}
func (NopHooks) BackendCloseFailed(string, error)  {}
