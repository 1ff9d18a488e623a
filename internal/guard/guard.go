package guard

import (
	"context"

	"github.com/aipush/directory/internal/models"
	"github.com/aipush/directory/internal/permissions"
	"github.com/aipush/directory/internal/session"
)

type State int

const (
	StateUnknown State = iota
	StateChecking
	StateAllowed
	StateRedirectLogin
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAllowed:
		return "allowed"
	case StateRedirectLogin:
		return "redirect_login"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Decision is the terminal verdict for one request. From carries the
// originally requested path so login can send the user back afterwards.
type Decision struct {
	State              State
	User               *models.User
	From               string
	RequiredPermission string
}

// Guard decides per request whether a protected route may be served.
// Verdicts are never cached: the required permission varies per route, so
// every navigation re-runs the full evaluation.
type Guard struct {
	Sessions  *session.Store
	LoginPath string
}

// Evaluate walks the state machine: unknown → checking → one of
// {allowed, redirect_login, denied}. It never fails; every internal
// problem lands on redirect_login via the session store's read paths.
func (g *Guard) Evaluate(ctx context.Context, tokenStr, requiredPermission, fromPath string) Decision {
	d := Decision{State: StateUnknown, From: fromPath, RequiredPermission: requiredPermission}
	d.State = StateChecking

	user := g.Sessions.CurrentUser(ctx, tokenStr)
	if user == nil {
		d.State = StateRedirectLogin
		return d
	}
	d.User = user

	if requiredPermission != "" && !permissions.Satisfies(user, requiredPermission) {
		// Authenticated but under-privileged: deny in place, no redirect.
		d.State = StateDenied
		return d
	}

	d.State = StateAllowed
	return d
}
