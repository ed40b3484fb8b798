// Package connector owns the channels that carry MCP traffic to the router.
// A Connector pairs exactly one session with exactly one channel: the
// persistent StreamConnector holds the router's shared event stream open
// across tool calls, while HTTPConnector exchanges discrete request/response
// rounds with a plain URL endpoint. Connectors establish, expose, and tear
// down the channel; the protocol handshake itself happens in the session
// layer over the Transport a connected connector hands out.
package connector
