// Package routeruse provides a high-level client for reaching tool-providing
// MCP servers aggregated behind a single MCP Router endpoint. Callers declare
// servers by name; the client registers and starts them in the router on
// demand, reconciling the locally cached identity against the router's
// authoritative list, and drives each session through its lifecycle over the
// router's shared streaming endpoint. Registration and start are best-effort:
// a failure to confirm them degrades gracefully and session creation still
// proceeds, because the server may be reachable for reasons the router calls
// could not confirm.
//
// # Core entry points
//
//   - Client is the long-lived facade. Construct it with New or
//     FromConfigFile, then call CreateSession / CloseSession, or
//     CreateAllSessions / CloseAllSessions for bulk lifecycles.
//   - ServerDescriptor records a launchable server and its last-known remote
//     identity; AddServer and RemoveServer manage the set at runtime.
//   - Session holds the tool catalog discovered during the handshake and
//     passes CallTool / ReadResource through to the protocol layer.
//
// Configuration round-trips through the JSON shape consumed by LoadConfig
// and written by Client.SaveConfig, including the cached server ids resolved
// during registration.
package routeruse
