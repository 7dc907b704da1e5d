package stalecache

import "sync"

// flight is one in-progress refresh of a key.
type flight struct {
	done chan struct{}
	val  any
	err  error

	// returned is set once some caller was handed this flight to await.
	// Guarded by flights.mu.
	returned bool
}

// flights is the per-cache registry of in-progress refreshes.
// A key with no entry is idle; a key with an entry is loading.
type flights struct {
	mu sync.Mutex
	m  map[string]*flight
}

func newFlights() *flights {
	return &flights{m: make(map[string]*flight)}
}

// begin observes the key's flight and, in the same critical section,
// registers a new one when refresh is true and none is live, and marks the
// live flight as returned when await is true.
//
// It returns the live flight (nil when idle and no refresh was requested)
// and whether the caller must start the refresh.
func (fs *flights) begin(key string, refresh, await bool) (f *flight, started bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f = fs.m[key]
	if f == nil && refresh {
		f = &flight{done: make(chan struct{})}
		fs.m[key] = f
		started = true
	}
	if f != nil && await {
		f.returned = true
	}
	return f, started
}

// finish publishes the outcome, removes the entry and wakes awaiting callers.
// It reports whether anyone was awaiting.
func (fs *flights) finish(key string, f *flight, val any, err error) (delivered bool) {
	fs.mu.Lock()
	if fs.m[key] == f {
		delete(fs.m, key)
	}
	delivered = f.returned
	f.val, f.err = val, err
	fs.mu.Unlock()

	close(f.done)
	return delivered
}

// loading reports whether key has a live flight.
func (fs *flights) loading(key string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.m[key] != nil
}
