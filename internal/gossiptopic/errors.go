package gossiptopic

import "errors"

var (
	// ErrNotSubscribed is returned by Send when there is no active
	// subscription for the message's topic.
	ErrNotSubscribed = errors.New("gossiptopic: not subscribed to topic")
	// ErrPayloadTooLarge is returned by Send when the encoded message
	// exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("gossiptopic: payload too large")
	// ErrAlreadySubscribed is returned by Create/Join when the topic
	// already has an active subscription on this endpoint.
	ErrAlreadySubscribed = errors.New("gossiptopic: already subscribed")
)
