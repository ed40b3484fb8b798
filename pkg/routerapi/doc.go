// Package routerapi speaks the MCP Router's management API: registering
// launchable servers, starting them, and fetching the router's authoritative
// server list. Client performs the raw HTTP calls and reports honest errors;
// Reconciler layers the best-effort semantics on top, converting remote and
// transport failures into Verdict values so callers can distinguish "the
// router said no" from "the router could not be reached" and pick their own
// retry policy.
package routerapi
