package ticket

import "errors"

// ErrInvalidTicket is returned by Parse and ParseBlobTicket for any decode
// failure: bad base32, wrong length, trailing bytes, or a malformed
// multiaddr inside a bootstrap address.
var ErrInvalidTicket = errors.New("ticket: invalid")
