package domain

import "errors"

var (
	// ErrInvalidSignature: the payload failed authentication. Fatal for the
	// request; the payload is untrusted and must not be processed.
	ErrInvalidSignature = errors.New("invalid_signature")

	// ErrInvalidPayload: the body is not parseable JSON.
	ErrInvalidPayload = errors.New("invalid_payload")

	// ErrMalformedEvent: a required field is missing. Redelivery will not
	// fix a malformed payload.
	ErrMalformedEvent = errors.New("malformed_event")

	// ErrEventIgnored: an event type we intentionally do not handle.
	ErrEventIgnored = errors.New("event_ignored")

	// ErrEventAlreadyProcessed: this delivery was already reconciled.
	ErrEventAlreadyProcessed = errors.New("event_already_processed")

	ErrInvalidEvent = errors.New("invalid_event")
)
