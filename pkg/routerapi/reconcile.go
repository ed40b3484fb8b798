package routerapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Verdict distinguishes a definitive remote answer from one the reconciler
// could not confirm.
type Verdict string

const (
	// VerdictConfirmed means the router answered and the operation succeeded.
	VerdictConfirmed Verdict = "confirmed"
	// VerdictRejected means the router answered and declined the operation.
	VerdictRejected Verdict = "rejected"
	// VerdictUnknown means a transport failure left the remote state
	// unconfirmed.
	VerdictUnknown Verdict = "unknown"
)

// Reconciler drives best-effort registration and start calls against the
// router. It trusts the router's authoritative list over any locally cached
// identity: a cached id is only ever as good as its presence in that list.
type Reconciler struct {
	api    *Client
	logger *slog.Logger
}

// NewReconciler wraps the management client with best-effort semantics.
func NewReconciler(api *Client, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{api: api, logger: logger}
}

// EnsureRegistered registers name with the router and returns the resolved
// id. body is the per-server payload: a LaunchSpec or a pre-shaped mapping.
// Remote refusal and transport failure both degrade to an empty id with the
// matching verdict; the caller decides whether to retry.
func (r *Reconciler) EnsureRegistered(ctx context.Context, name string, body any) (string, Verdict) {
	if body == nil {
		r.logger.Warn("server has no registration body", "server", name)
		return "", VerdictRejected
	}
	resp, err := r.api.Register(ctx, map[string]any{name: body})
	if err != nil {
		verdict := verdictFor(err)
		r.logger.Warn("server registration unconfirmed", "server", name, "verdict", verdict, "error", err)
		return "", verdict
	}
	id, ok := resp.FirstSuccess()
	if !ok {
		r.logger.Warn("no servers were successfully registered", "server", name)
		return "", VerdictRejected
	}
	r.logger.Info("registered server with router", "server", name, "id", id)
	return id, VerdictConfirmed
}

// EnsureStarted asks the router to start the server with the given id. True
// requires HTTP 200 and a success flag in the body; everything else,
// transport failure included, is false.
func (r *Reconciler) EnsureStarted(ctx context.Context, id string) bool {
	resp, err := r.api.Start(ctx, id)
	if err != nil {
		r.logger.Warn("server start unconfirmed", "server", id, "error", err)
		return false
	}
	if !resp.Success {
		r.logger.Warn("router declined to start server", "server", id, "message", resp.Message)
		return false
	}
	r.logger.Info("started server in router", "server", id)
	return true
}

// ListRemote fetches the authoritative server list, degrading failures to an
// empty list with the matching verdict.
func (r *Reconciler) ListRemote(ctx context.Context) ([]ServerInfo, Verdict) {
	servers, err := r.api.List(ctx)
	if err != nil {
		verdict := verdictFor(err)
		r.logger.Warn("server listing failed", "verdict", verdict, "error", err)
		return nil, verdict
	}
	return servers, VerdictConfirmed
}

// EnsureRunning verifies that the server with the given id exists in the
// router and is online, starting it when necessary. Unlike the best-effort
// paths this is a hard check: a connector about to open a stream for a
// specific server cannot proceed without it.
func (r *Reconciler) EnsureRunning(ctx context.Context, id string) error {
	servers, err := r.api.List(ctx)
	if err != nil {
		return fmt.Errorf("routerapi: cannot verify server %q: %w", id, err)
	}
	for _, srv := range servers {
		if srv.ID != id {
			continue
		}
		if srv.Status == StatusOnline {
			return nil
		}
		if !r.EnsureStarted(ctx, id) {
			return fmt.Errorf("routerapi: server %q could not be started", id)
		}
		return nil
	}
	return fmt.Errorf("routerapi: server %q not found in router", id)
}

// Resolve reconciles a cached server id against the router's list and
// returns the id a session connector should target. An empty cachedID
// triggers a full registration and start. A cached id present remotely is
// started when not online. A cached id missing from a successfully fetched
// list is stale and triggers re-registration. A listing transport failure
// keeps the cached id, because the reconciler could not prove it stale.
func (r *Reconciler) Resolve(ctx context.Context, name, cachedID string, body any) (string, Verdict) {
	if cachedID == "" {
		return r.registerAndStart(ctx, name, body)
	}
	servers, verdict := r.ListRemote(ctx)
	if verdict != VerdictConfirmed {
		return cachedID, VerdictUnknown
	}
	for _, srv := range servers {
		if srv.ID != cachedID {
			continue
		}
		if srv.Status != StatusOnline {
			r.EnsureStarted(ctx, cachedID)
		}
		return cachedID, VerdictConfirmed
	}
	r.logger.Info("cached server id is stale, re-registering", "server", name, "id", cachedID)
	return r.registerAndStart(ctx, name, body)
}

func (r *Reconciler) registerAndStart(ctx context.Context, name string, body any) (string, Verdict) {
	id, verdict := r.EnsureRegistered(ctx, name, body)
	if id == "" {
		return "", verdict
	}
	r.EnsureStarted(ctx, id)
	return id, VerdictConfirmed
}

func verdictFor(err error) Verdict {
	var se *StatusError
	if errors.As(err, &se) {
		return VerdictRejected
	}
	return VerdictUnknown
}
