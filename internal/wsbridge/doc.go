// Package wsbridge lets WebSocket peers join the chat through the exact
// line protocol TCP peers speak. Frames are adapted into a byte stream, so
// the same reader, broker, and writer path serves both transports.
package wsbridge
