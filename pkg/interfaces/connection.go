package interfaces

import "lingorelay/pkg/protocol"

// Connection is one live client endpoint.
// ARCHITECTURAL DISCOVERY: routing code only ever needs an identity and a way to enqueue
// output, so transport details stay behind this boundary
type Connection interface {
	// ID returns the server-generated handle of the connection.
	ID() string

	// Send enqueues an envelope without blocking. It fails when the connection is closed or
	// its outbound queue overflowed, in which case the connection has been dropped.
	Send(msg protocol.Outbound) error

	// Close releases the connection. It is idempotent.
	Close() error
}
