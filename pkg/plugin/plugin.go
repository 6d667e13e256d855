// Package plugin defines the capture and report interfaces the relay loop
// is built on.
package plugin

import "context"

// Plugin is the base interface for all plugins.
type Plugin interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
