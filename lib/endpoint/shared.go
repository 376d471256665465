package endpoint

import "context"

// sharedEndpoint hands out an endpoint that is safe for concurrent use
// without passing on ownership
type sharedEndpoint struct {
	Endpoint
}

// Close does nothing, the owner of the wrapped endpoint closes it
func (sharedEndpoint) Close() error {
	return nil
}

// SharedOpener returns an Opener that always yields ep. Closing an endpoint
// returned by the opener has no effect, the caller remains responsible for
// closing ep. It is meant for endpoints that are safe for concurrent use and
// can only be opened once (e.g. an embedded database).
func SharedOpener(ep Endpoint) Opener {
	return func(context.Context) (Endpoint, error) {
		return sharedEndpoint{Endpoint: ep}, nil
	}
}
