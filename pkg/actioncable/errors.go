package actioncable

import "errors"

// Sentinel errors callers may match with errors.Is.
var (
	// ErrUnsupportedProtocol is logged when the server negotiates the
	// actioncable-unsupported sentinel instead of a real subprotocol; open()
	// closes the socket immediately afterward instead of starting a read
	// loop against a connection that can never speak the wire protocol.
	ErrUnsupportedProtocol = errors.New("actioncable: server negotiated unsupported subprotocol")

	// ErrNotOpen is the underlying reason a send is skipped: the socket is
	// not in the open state. It is never returned to callers directly
	// (Send/Perform return bool, not error, per spec) but is logged so a
	// trace of a dropped send can be correlated with connection state.
	ErrNotOpen = errors.New("actioncable: connection is not open")

	// ErrClosed is returned by Subscriptions.Create once Consumer.Disconnect
	// has been called: the consumer is permanently torn down and will not
	// reopen, so a new subscription would never be confirmed.
	ErrClosed = errors.New("actioncable: consumer is closed")
)
