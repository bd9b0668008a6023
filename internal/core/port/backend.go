package port

import (
	"context"

	"github.com/greenwire-dev/optibridge/internal/core/domain"
)

// OptimizationBackend submits a request to the external optimization engine
// and returns the raw response body. Implementations must honor the
// configured request timeout and never retry on their own; a failed call
// surfaces as *domain.TransportError and is retried on the next scheduled
// cycle.
type OptimizationBackend interface {
	Kind() domain.BackendKind
	Submit(ctx context.Context, req domain.OptimizationRequest, startSlotHint int) ([]byte, error)
}
