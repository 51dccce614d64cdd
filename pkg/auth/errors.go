package auth

import "fmt"

// InvalidRequestError reports malformed or missing caller input, such as an
// empty authorization code. Requests that fail this way are never sent over
// the wire.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// AuthenticationError reports that the token endpoint rejected the supplied
// credentials, authorization code, or refresh token, or that no usable
// credential was available in the first place. StatusCode and Body are zero
// when the error was raised before any network call.
type AuthenticationError struct {
	Reason     string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed: %s (status %d)", e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from a domain endpoint after
// authentication succeeded (or after the single refresh-and-replay was
// exhausted). It carries the status and raw body for caller inspection.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected response: %s", e.Status)
}

// TransportError is a network-level failure (timeout, DNS, connection
// reset). It is surfaced immediately and never retried internally.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
