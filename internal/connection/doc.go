// Package connection implements the TCP side of the chat server.
//
// The Manager binds one listener and spawns a reader task per accepted
// connection. Readers parse the line protocol into broker events and run
// fully independently of one another; a reader failure terminates only its
// own connection. Writers are not here — the broker spawns one per
// registered peer.
package connection
