package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
	"github.com/sethvargo/go-retry"
	"go.uber.org/atomic"
)

var errNoActiveProvider = errors.New("no active delivery provider")

// Registry holds every constructed provider and an atomically swappable view
// of which ones are currently active, in what order. Reload replaces the view
// without locking senders out mid-flight.
type Registry struct {
	providers map[string]Provider
	active    *atomic.Pointer[snapshot]
}

type snapshot struct {
	byMethod map[entity.DeliveryMethod][]Provider
}

// NewRegistry builds a registry over the given providers. Until the first
// Reload, every provider is active in registration order.
func NewRegistry(providers ...Provider) *Registry {
	byName := make(map[string]Provider, len(providers))
	byMethod := make(map[entity.DeliveryMethod][]Provider)
	for _, p := range providers {
		byName[p.Name()] = p
		byMethod[p.Method()] = append(byMethod[p.Method()], p)
	}

	return &Registry{
		providers: byName,
		active:    atomic.NewPointer(&snapshot{byMethod: byMethod}),
	}
}

// Reload swaps the active set from the operator-managed settings. Settings
// must arrive highest priority first; names without a constructed provider
// are skipped with a warning rather than failing the reload.
func (r *Registry) Reload(ctx context.Context, settings []entity.ProviderSetting) {
	byMethod := make(map[entity.DeliveryMethod][]Provider)
	for _, st := range settings {
		if !st.Enabled {
			continue
		}

		p, found := r.providers[st.Name]
		if !found {
			slog.WarnContext(ctx, "delivery provider configured but not built", "provider", st.Name)

			continue
		}

		byMethod[p.Method()] = append(byMethod[p.Method()], p)
	}

	r.active.Store(&snapshot{byMethod: byMethod})
}

// Active lists the active provider names for a method, priority order.
func (r *Registry) Active(method entity.DeliveryMethod) []string {
	ps := r.active.Load().byMethod[method]
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		names = append(names, p.Name())
	}

	return names
}

// Deliver pushes the code through the highest-priority active provider for
// the method, falling back down the list when a provider fails after retries.
// Fails fast when no provider is active, so no code gets persisted for a
// message that cannot leave the building.
func (r *Registry) Deliver(ctx context.Context, method entity.DeliveryMethod, destination, code string, ttl time.Duration) (string, error) {
	ps := r.active.Load().byMethod[method]
	if len(ps) == 0 {
		return "", goerror.NewServer(errNoActiveProvider)
	}

	var lastErr error
	for _, p := range ps {
		b := retry.WithMaxRetries(2, retry.NewFibonacci(200*time.Millisecond))

		err := retry.Do(ctx, b, func(ctx context.Context) error {
			if err := p.Send(ctx, destination, code, ttl); err != nil {
				return retry.RetryableError(err)
			}

			return nil
		})
		if err == nil {
			return p.Name(), nil
		}

		slog.WarnContext(ctx, "delivery provider failed, trying next",
			"provider", p.Name(), "error", err)
		lastErr = err
	}

	return "", goerror.NewServer(fmt.Errorf("all delivery providers failed: %w", lastErr))
}
