package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/rentacar/internal/domain/rental"
)

const maxBodyBytes = 1 << 16

// CreateRental handles POST /api/rentals.
func (h *Handler) CreateRental(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
		return
	}

	req, err := decodeCreateRental(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.recordBooking(r, "BadRequest")
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	req.UserID = userID

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int64("rental.vehicle_id", req.VehicleID),
		attribute.Int64("rental.user_id", userID),
	)

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	created, err := h.booker.CreateRental(ctx, req)
	if err != nil {
		h.recordBooking(r, outcome(err))
		h.writeRentalError(w, r, err)
		return
	}

	h.recordBooking(r, "Created")
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeRental(e, created) })
}

// CancelRental handles DELETE /api/rentals/{id}.
func (h *Handler) CancelRental(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "BadRequest", "rental id must be a positive integer")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.booker.CancelRental(ctx, id, userID); err != nil {
		h.cancellations.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
		h.writeRentalError(w, r, err)
		return
	}

	h.cancellations.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", "Cancelled")))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordBooking(r *http.Request, outcome string) {
	h.bookings.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func outcome(err error) string {
	if kind := rental.KindOf(err); kind != "" {
		return kind
	}
	return "Error"
}

// statusFor maps booking outcomes to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rental.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, rental.ErrVehicleNotFound), errors.Is(err, rental.ErrRentalNotFound):
		return http.StatusNotFound
	case errors.Is(err, rental.ErrVehicleUnavailable), errors.Is(err, rental.ErrCouponAlreadyRedeemed):
		return http.StatusConflict
	case errors.Is(err, rental.ErrInvalidCoupon):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeRentalError(w http.ResponseWriter, r *http.Request, err error) {
	kind := rental.KindOf(err)
	if kind == "" {
		zctx.From(r.Context()).Error("Rental request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal", "internal server error")
		return
	}
	writeError(w, statusFor(err), kind, err.Error())
}

// decodeCreateRental reads
//
//	{"vehicleId":1,"startDate":"<RFC3339>","endDate":"<RFC3339>","couponCode":"SPRING20"}
//
// couponCode is optional and may be null.
func decodeCreateRental(body io.Reader) (rental.CreateRequest, error) {
	var req rental.CreateRequest
	var hasVehicle, hasStart, hasEnd bool
	d := jx.Decode(body, 512)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "vehicleId":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "vehicleId")
			}
			req.VehicleID, hasVehicle = v, true
		case "startDate":
			t, err := decodeTime(d)
			if err != nil {
				return errors.Wrap(err, "startDate")
			}
			req.StartDate, hasStart = t, true
		case "endDate":
			t, err := decodeTime(d)
			if err != nil {
				return errors.Wrap(err, "endDate")
			}
			req.EndDate, hasEnd = t, true
		case "couponCode":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "couponCode")
			}
			req.CouponCode = s
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return req, errors.Wrap(err, "invalid request body")
	}

	switch {
	case !hasVehicle:
		return req, errors.New("vehicleId is required")
	case !hasStart:
		return req, errors.New("startDate is required")
	case !hasEnd:
		return req, errors.New("endDate is required")
	}
	return req, nil
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}

func encodeRental(e *jx.Encoder, r *rental.Rental) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(r.ID) })
		e.Field("vehicleId", func(e *jx.Encoder) { e.Int64(r.VehicleID) })
		e.Field("rentedBy", func(e *jx.Encoder) { e.Int64(r.RentedBy) })
		e.Field("startDate", func(e *jx.Encoder) { e.Str(r.StartDate.UTC().Format(time.RFC3339)) })
		e.Field("endDate", func(e *jx.Encoder) { e.Str(r.EndDate.UTC().Format(time.RFC3339)) })
		e.Field("totalPrice", func(e *jx.Encoder) { e.Raw([]byte(r.TotalPrice.StringFixed(2))) })
		if r.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(r.CouponCode) })
		}
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(r.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}
