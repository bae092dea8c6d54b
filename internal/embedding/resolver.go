package embedding

import (
	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/types"
)

// Result is the tagged outcome of an embedding attempt. An item is never
// failed over a missing embedding; downstream clustering falls back to the
// keyword labeler instead.
type Result struct {
	Vector []float64
	Status types.CapabilityStatus
}

// OK reports whether a usable vector was obtained
func (r Result) OK() bool {
	return r.Status == types.CapabilityOK && len(r.Vector) > 0
}

// Embedder is the capability contract, satisfied by *Client and test mocks
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// Resolver wraps the embedding capability with absence handling
type Resolver struct {
	client Embedder // nil = capability absent in this environment
}

// NewResolver builds a resolver. Pass nil to mark the capability absent.
func NewResolver(client Embedder) *Resolver {
	return &Resolver{client: client}
}

// Resolve attempts to embed the text. Absence and failure are equivalent for
// callers: no vector lookup or upsert happens, the item stays invisible to
// future similarity queries.
func (r *Resolver) Resolve(text string) Result {
	if r.client == nil {
		return Result{Status: types.CapabilityAbsent}
	}
	vec, err := r.client.Embed(text)
	if err != nil {
		logging.Debug("embedding", "embed failed: %v", err)
		return Result{Status: types.CapabilityFailed}
	}
	if len(vec) == 0 {
		return Result{Status: types.CapabilityFailed}
	}
	return Result{Vector: vec, Status: types.CapabilityOK}
}
