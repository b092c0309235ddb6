package dm

import "errors"

// ErrNoDmSender is returned by SendDM when there is no open stream to the
// peer yet — the caller must ConnectPeer first.
var ErrNoDmSender = errors.New("dm: no sender for peer")
