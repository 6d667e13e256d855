package plugin

import (
	"context"

	"firestige.xyz/facerelay/internal/core"
)

// Reporter sends remapped face frames to an external consumer.
type Reporter interface {
	Plugin
	Report(ctx context.Context, out *core.FaceOutput) error
	Flush(ctx context.Context) error
}

// MessageSender is an optional interface for reporters that can also send
// single ad hoc messages outside of the per-frame bundle.
type MessageSender interface {
	SendMessage(ctx context.Context, addr string, args ...any) error
}
