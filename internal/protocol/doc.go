// Package protocol defines the newline-delimited wire protocol spoken
// between chat peers and the server.
//
// Client → server:
//   - first line after connect: the peer's display name
//   - "dest1,dest2:body" — unicast/multicast; a sole "*" token means all
//   - "Client_Disconnect" — intentional-disconnect announcement
//   - "Client_PeerList_Request" — request the current peer list
//   - any other line without ':' is ignored
//
// Server → client:
//   - broadcasts: "{from}{body}" (no separator)
//   - directed messages: "{from}: {body}"
//   - peer list: "**Clients Connected:", "**Server: {name}" per peer, "**FIN"
package protocol
