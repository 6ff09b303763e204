// Package browser compiles local-only rows of UI-only resource types into
// declarative automation plans, executes them against a UI automation
// agent, and reconciles the created records against freshly-listed remote
// resources. The platform exposes no API for these types; driving its web
// UI is the only way to create them.
package browser

import (
	"context"
	"time"
)

// Agent is the UI automation backend. The engine only sequences
// declarative steps against it and never inspects page structure itself;
// the embedding application supplies the implementation.
type Agent interface {
	// Navigate loads a URL in the automated session.
	Navigate(ctx context.Context, url string) error

	// Evaluate runs a script in the page and returns its object result.
	Evaluate(ctx context.Context, script string) (map[string]any, error)

	// Screenshot captures the page under a label and returns the file path.
	Screenshot(ctx context.Context, label string) (string, error)

	// IsLoggedIn reports whether the session is authenticated.
	IsLoggedIn(ctx context.Context) (bool, error)

	// Login performs a scripted login bounded by the timeout.
	Login(ctx context.Context, email, password string, timeout time.Duration) error
}
