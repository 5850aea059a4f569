// Package types carries shared values between the CLI wiring and the
// individual command packages.
package types

import (
	"context"
	"errors"

	"gymkeeper/internal/app/client"
)

type ctxKey string

// ClientAppKey carries the initialized client application through the
// command context.
const ClientAppKey ctxKey = "client-app"

// AppFrom extracts the application from the command context.
func AppFrom(ctx context.Context) (*client.App, error) {
	app, ok := ctx.Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, errors.New("application is not initialized")
	}
	return app, nil
}
