// Package broker implements the message broker at the core of the chat
// server.
//
// The broker:
//   - owns the peer registry (name → outbound queue), mutated by exactly
//     one goroutine — no locks by construction
//   - routes unicast, multicast, and wildcard broadcast messages
//   - answers peer-list requests
//   - spawns one connection writer per registered peer and reconciles the
//     registry from their disconnect notices
//
// Lifecycle: running → draining (inbound event source closed; outboxes are
// closed so writers flush and exit) → stopped (all disconnect notices
// consumed).
package broker
