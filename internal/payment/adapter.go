package payment

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/seatly/seatly/internal/domain"
)

// CreateLinkParams describes the checkout to open with a provider.
type CreateLinkParams struct {
	BookingID uuid.UUID
	Amount    float64
	OrderInfo string
}

// LinkResult is what the caller needs to hand back to the client and to later
// correlate the provider's webhook: SessionID is stored on the booking and is
// the webhook lookup key.
type LinkResult struct {
	URL       string
	SessionID string
}

// Adapter creates a hosted checkout for one provider. Implementations are
// stateless and safe for concurrent use.
type Adapter interface {
	Provider() domain.PaymentProvider
	CreatePaymentLink(ctx context.Context, params CreateLinkParams) (*LinkResult, error)
}

// Registry is an immutable provider lookup built once at startup.
type Registry struct {
	adapters map[domain.PaymentProvider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[domain.PaymentProvider]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Provider()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Adapter(provider domain.PaymentProvider) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "unsupported payment provider %q", provider)
	}
	return a, nil
}
