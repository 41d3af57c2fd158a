package protocol

import "strings"

// Reserved protocol strings. Sentinel lines carry control meaning and are
// never treated as chat content. SystemName is the sender used for
// server-originated notices; client display names must not start with "**".
const (
	// DisconnectSentinel announces an intentional disconnect.
	DisconnectSentinel = "Client_Disconnect"

	// PeerListSentinel requests the list of connected peers.
	PeerListSentinel = "Client_PeerList_Request"

	// Wildcard as the sole destination token addresses every registered peer.
	Wildcard = "*"

	// SystemName is the from-name on join/leave notices.
	SystemName = "**"

	listHeader     = "**Clients Connected:"
	listEntry      = "**Server: "
	listTerminator = "**FIN"
)

// SplitDirected parses a "dest1,dest2:body" line. Destination tokens are
// comma-separated and whitespace-trimmed; the body is everything after the
// first ':', trimmed. ok is false when the line carries no ':' at all —
// such lines are not an error, they are simply ignored by the caller.
func SplitDirected(line string) (to []string, body string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return nil, "", false
	}
	to = strings.Split(line[:idx], ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}
	return to, strings.TrimSpace(line[idx+1:]), true
}

// IsBroadcast reports whether a destination list addresses all peers:
// exactly one token, the wildcard.
func IsBroadcast(to []string) bool {
	return len(to) == 1 && to[0] == Wildcard
}

// FormatBroadcast renders a broadcast line. There is deliberately no
// separator between sender and body; the deployed clients rely on this
// exact shape, so it is kept as-is rather than normalized to the
// directed-message format.
func FormatBroadcast(from, body string) string {
	return from + body + "\n"
}

// FormatDirected renders a unicast/multicast line.
func FormatDirected(from, body string) string {
	return from + ": " + body + "\n"
}

// FormatListHeader renders the first line of a peer-list response.
func FormatListHeader() string {
	return listHeader + "\n"
}

// FormatListEntry renders one peer-list line. Trailing ':' runes are
// stripped from the name so the entry cannot be mistaken for a directed
// message by line-oriented clients.
func FormatListEntry(name string) string {
	return listEntry + strings.TrimRight(name, ":") + "\n"
}

// FormatListTerminator renders the final line of a peer-list response.
func FormatListTerminator() string {
	return listTerminator + "\n"
}

// JoinNotice is the broadcast body announcing a new peer.
func JoinNotice(name string) string {
	return "New client joined: " + name
}

// LeaveNotice is the broadcast body announcing an intentional disconnect.
// The trailing space matches the message the deployed clients expect.
func LeaveNotice(name string) string {
	return "Client, " + name + ", has disconnected "
}
