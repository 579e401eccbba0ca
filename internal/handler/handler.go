// Package handler exposes the booking engine over HTTP.
package handler

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/rentacar/internal/domain/rental"
)

// Booker is the booking engine as seen by the HTTP layer.
type Booker interface {
	CreateRental(ctx context.Context, req rental.CreateRequest) (*rental.Rental, error)
	CancelRental(ctx context.Context, rentalID, userID int64) error
}

var _ Booker = (*rental.Engine)(nil)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// TxTimeout bounds each booking or cancellation, lock waits included.
	// Zero leaves the request context unchanged.
	TxTimeout time.Duration
}

// Handler serves the rental endpoints.
type Handler struct {
	booker    Booker
	txTimeout time.Duration

	bookings      metric.Int64Counter
	cancellations metric.Int64Counter
}

// NewHandler constructs a Handler that records booking outcomes on meter.
func NewHandler(cfg HandlerConfig, booker Booker, meter metric.Meter) (*Handler, error) {
	bookings, err := meter.Int64Counter("rental.bookings",
		metric.WithDescription("Booking attempts by outcome"),
		metric.WithUnit("{booking}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "bookings counter")
	}
	cancellations, err := meter.Int64Counter("rental.cancellations",
		metric.WithDescription("Cancellation attempts by outcome"),
		metric.WithUnit("{cancellation}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cancellations counter")
	}

	return &Handler{
		booker:        booker,
		txTimeout:     cfg.TxTimeout,
		bookings:      bookings,
		cancellations: cancellations,
	}, nil
}

// Mount registers the rental routes on r behind the API key check.
func (h *Handler) Mount(r chi.Router, sec *SecurityHandler) {
	r.Route("/api/rentals", func(r chi.Router) {
		r.Use(sec.Middleware)
		r.Post("/", h.CreateRental)
		r.Delete("/{id}", h.CancelRental)
	})
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.txTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.txTimeout)
}
