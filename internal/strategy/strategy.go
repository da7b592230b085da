// Package strategy implements the backtest engine: signal computation, the
// all-in/all-out trade simulation, performance metrics, and a Registry of
// named strategies the engine can run.
package strategy

import (
	"fmt"
	"sort"

	"spxbacktest/internal/domain"
)

// DefaultStrategy is the registry name of the moving-average dip strategy.
const DefaultStrategy = "sma-dip"

// Strategy turns a close-price series into aligned indicator and signal
// series.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// WarmUp returns the number of leading bars that can never carry an
	// actionable signal. A series no longer than this cannot trade.
	WarmUp() int

	// Signals computes the indicator and buy/sell series for closes. The
	// returned series has exactly len(closes) entries.
	Signals(closes []float64) *SignalSeries
}

// Factory builds a Strategy from run parameters, rejecting invalid ones with
// an error wrapping ErrInvalidParameter.
type Factory func(params domain.StrategyParams) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the name was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// New builds the named strategy with params.
func (r *Registry) New(name string, params domain.StrategyParams) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidParameter, name)
	}
	return f(params)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
