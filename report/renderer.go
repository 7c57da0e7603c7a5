package report

import "context"

// Renderer turns a prepared document into PDF bytes.
//
// The layout engine is an external collaborator; only this contract is
// fixed here. Implementations must be safe for sequential reuse across
// runs.
type Renderer interface {
	Render(ctx context.Context, doc *Document) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, doc *Document) ([]byte, error)

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, doc *Document) ([]byte, error) {
	return f(ctx, doc)
}
