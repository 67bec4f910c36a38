package services

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/experimentd/internal/events"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
	"github.com/fyrsmithlabs/experimentd/internal/site"
	"github.com/fyrsmithlabs/experimentd/internal/store"
	"github.com/fyrsmithlabs/experimentd/internal/telemetry"
)

// Registry provides access to the services of one process.
type Registry interface {
	Logger() *logging.Logger
	Telemetry() *telemetry.Telemetry
	// Store is nil in processes that reach storage through the API.
	Store() store.Store
	Events() events.Publisher
	// Backend is what the web surface talks to.
	Backend() site.Backend
	// Close releases everything in reverse construction order.
	Close(ctx context.Context) error
}

// Options configures the registry with service instances.
type Options struct {
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry
	Store     store.Store
	Events    events.Publisher
	Backend   site.Backend
}

type registry struct {
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     store.Store
	events    events.Publisher
	backend   site.Backend

	closers []func(context.Context) error
}

// NewRegistry creates a registry from already built services. Missing
// logger and publisher default to no-ops.
func NewRegistry(opts Options) Registry {
	return newRegistry(opts)
}

func newRegistry(opts Options) *registry {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &registry{
		logger:    opts.Logger,
		telemetry: opts.Telemetry,
		store:     opts.Store,
		events:    opts.Events,
		backend:   opts.Backend,
	}
}

func (r *registry) Logger() *logging.Logger         { return r.logger }
func (r *registry) Telemetry() *telemetry.Telemetry { return r.telemetry }
func (r *registry) Store() store.Store              { return r.store }
func (r *registry) Events() events.Publisher        { return r.events }
func (r *registry) Backend() site.Backend           { return r.backend }

func (r *registry) onClose(fn func(context.Context) error) {
	r.closers = append(r.closers, fn)
}

func (r *registry) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
