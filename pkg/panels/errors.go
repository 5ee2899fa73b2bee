package panels

import "errors"

var (
	// ErrSessionClosed is returned by operations on a closed panel session.
	ErrSessionClosed = errors.New("panel session is closed")

	// ErrStaleOptionsRequest marks an option load that was superseded by a
	// newer request for the same field before it finished. Its result, error
	// or not, must be discarded.
	ErrStaleOptionsRequest = errors.New("options request superseded")

	// ErrNodeHasNoProvider is returned when a panel is opened for a node
	// that does not talk to a provider.
	ErrNodeHasNoProvider = errors.New("node has no provider")

	// ErrConnectionNotAvailable is returned when an explicit selection names
	// a connection the workspace inventory does not contain.
	ErrConnectionNotAvailable = errors.New("connection not available in workspace")

	// ErrConnectionNotSelectable is returned when an explicit selection
	// names a connection that exists but cannot be bound, e.g. one whose
	// grant must be re-authorized first.
	ErrConnectionNotSelectable = errors.New("connection not selectable")

	// ErrNoUsableConnection is returned when options are requested while the
	// node is not bound to a usable connection.
	ErrNoUsableConnection = errors.New("node has no usable connection")
)
