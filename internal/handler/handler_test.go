package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/rentacar/internal/domain/auth"
	"github.com/xenking/rentacar/internal/domain/coupon"
	"github.com/xenking/rentacar/internal/domain/rental"
	"github.com/xenking/rentacar/internal/domain/vehicle"
	"github.com/xenking/rentacar/internal/storage/memory"
)

var testPepper = []byte("test-pepper")

const (
	aliceKey = "alice-secret"
	bobKey   = "bob-secret"
	ghostKey = "ghost-secret"
)

// --- Mock implementations ---

type mockAPIKeyRepo struct {
	byHash map[string]auth.APIKeyInfo
	err    error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &info, nil
}

func newAPIKeyRepo() *mockAPIKeyRepo {
	keys := map[string]int64{aliceKey: 1, bobKey: 2, ghostKey: 99}
	repo := &mockAPIKeyRepo{byHash: make(map[string]auth.APIKeyInfo)}
	for key, userID := range keys {
		hash := HashAPIKey(testPepper, key)
		repo.byHash[hash] = auth.APIKeyInfo{ID: key, KeyHash: hash, Name: key, UserID: userID}
	}
	return repo
}

type stubBooker struct {
	err error
}

func (s stubBooker) CreateRental(context.Context, rental.CreateRequest) (*rental.Rental, error) {
	return nil, s.err
}

func (s stubBooker) CancelRental(context.Context, int64, int64) error {
	return s.err
}

// --- Helpers ---

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newServer(t *testing.T, booker Booker) http.Handler {
	t.Helper()

	store := memory.New()
	store.AddUser(1)
	store.AddUser(2)
	store.AddVehicle(vehicle.Vehicle{ID: 1, Name: "Compact", IsAvailable: true, PricePerDay: decimal.NewFromInt(50)})
	store.AddCoupon(coupon.Coupon{ID: 1, Code: "SPRING20", DiscountPercent: decimal.NewFromInt(20)})

	if booker == nil {
		booker = rental.NewEngine(store, rental.WithClock(func() time.Time { return now }))
	}

	h, err := NewHandler(HandlerConfig{TxTimeout: time.Second}, booker, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	r := chi.NewRouter()
	h.Mount(r, NewSecurityHandler(newAPIKeyRepo(), store, testPepper))
	return r
}

func do(t *testing.T, srv http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type rentalBody struct {
	ID         int64   `json:"id"`
	VehicleID  int64   `json:"vehicleId"`
	RentedBy   int64   `json:"rentedBy"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
	TotalPrice float64 `json:"totalPrice"`
	CouponCode string  `json:"couponCode"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func bookingJSON(start, end, code string) string {
	if code == "" {
		return `{"vehicleId":1,"startDate":"` + start + `","endDate":"` + end + `"}`
	}
	return `{"vehicleId":1,"startDate":"` + start + `","endDate":"` + end + `","couponCode":"` + code + `"}`
}

// --- Tests ---

func TestCreateRental_Success(t *testing.T) {
	srv := newServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/rentals", aliceKey,
		bookingJSON("2026-03-10T10:00:00Z", "2026-03-15T10:00:00Z", ""))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body rentalBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotZero(t, body.ID)
	assert.Equal(t, int64(1), body.VehicleID)
	assert.Equal(t, int64(1), body.RentedBy)
	assert.Equal(t, 250.0, body.TotalPrice)
	assert.Equal(t, "2026-03-10T10:00:00Z", body.StartDate)
	assert.Empty(t, body.CouponCode)
}

func TestCreateRental_WithCoupon(t *testing.T) {
	srv := newServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/rentals", aliceKey,
		bookingJSON("2026-03-20T00:00:00Z", "2026-03-23T00:00:00Z", "spring20"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body rentalBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, 120.0, body.TotalPrice)
	assert.Equal(t, "SPRING20", body.CouponCode)

	w = do(t, srv, http.MethodPost, "/api/rentals", aliceKey,
		bookingJSON("2026-04-20T00:00:00Z", "2026-04-23T00:00:00Z", "SPRING20"))
	require.Equal(t, http.StatusConflict, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, "CouponAlreadyRedeemed", got.Kind)
	assert.Equal(t, "you have already redeemed this coupon", got.Message)
}

func TestCreateRental_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
	}{
		{
			name:     "past start",
			body:     bookingJSON("2026-02-01T00:00:00Z", "2026-02-03T00:00:00Z", ""),
			wantCode: http.StatusBadRequest,
			wantKind: "InvalidDateRange",
		},
		{
			name:     "start equals end",
			body:     bookingJSON("2026-03-03T00:00:00Z", "2026-03-03T00:00:00Z", ""),
			wantCode: http.StatusBadRequest,
			wantKind: "InvalidDateRange",
		},
		{
			name:     "unknown vehicle",
			body:     `{"vehicleId":42,"startDate":"2026-03-03T00:00:00Z","endDate":"2026-03-05T00:00:00Z"}`,
			wantCode: http.StatusNotFound,
			wantKind: "VehicleNotFound",
		},
		{
			name:     "invalid coupon",
			body:     bookingJSON("2026-03-03T00:00:00Z", "2026-03-05T00:00:00Z", "NOPE"),
			wantCode: http.StatusUnprocessableEntity,
			wantKind: "InvalidCoupon",
		},
		{
			name:     "malformed json",
			body:     `{"vehicleId":`,
			wantCode: http.StatusBadRequest,
			wantKind: "BadRequest",
		},
		{
			name:     "bad date format",
			body:     `{"vehicleId":1,"startDate":"March 3","endDate":"2026-03-05T00:00:00Z"}`,
			wantCode: http.StatusBadRequest,
			wantKind: "BadRequest",
		},
		{
			name:     "missing end date",
			body:     `{"vehicleId":1,"startDate":"2026-03-03T00:00:00Z"}`,
			wantCode: http.StatusBadRequest,
			wantKind: "BadRequest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, nil)

			w := do(t, srv, http.MethodPost, "/api/rentals", aliceKey, tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			got := decodeError(t, w)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestCreateRental_Overlap(t *testing.T) {
	srv := newServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/rentals", bobKey,
		bookingJSON("2026-03-10T00:00:00Z", "2026-03-15T00:00:00Z", ""))
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, srv, http.MethodPost, "/api/rentals", aliceKey,
		bookingJSON("2026-03-14T00:00:00Z", "2026-03-18T00:00:00Z", ""))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "VehicleUnavailable", decodeError(t, w).Kind)

	w = do(t, srv, http.MethodPost, "/api/rentals", aliceKey,
		bookingJSON("2026-03-15T00:00:00Z", "2026-03-18T00:00:00Z", ""))
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateRental_InfrastructureError(t *testing.T) {
	srv := newServer(t, stubBooker{err: errors.New("pq: connection refused")})

	w := do(t, srv, http.MethodPost, "/api/rentals", aliceKey,
		bookingJSON("2026-03-10T00:00:00Z", "2026-03-15T00:00:00Z", ""))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	got := decodeError(t, w)
	assert.Equal(t, "Internal", got.Kind)
	assert.NotContains(t, got.Message, "connection refused")
}

func TestCancelRental(t *testing.T) {
	srv := newServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/rentals", aliceKey,
		bookingJSON("2026-03-10T00:00:00Z", "2026-03-15T00:00:00Z", ""))
	require.Equal(t, http.StatusCreated, w.Code)
	var created rentalBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	path := "/api/rentals/" + strconv.FormatInt(created.ID, 10)

	t.Run("foreign rental", func(t *testing.T) {
		w := do(t, srv, http.MethodDelete, path, bobKey, "")
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "RentalNotFound", decodeError(t, w).Kind)
	})

	t.Run("bad id", func(t *testing.T) {
		w := do(t, srv, http.MethodDelete, "/api/rentals/abc", aliceKey, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("owner", func(t *testing.T) {
		w := do(t, srv, http.MethodDelete, path, aliceKey, "")
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("already cancelled", func(t *testing.T) {
		w := do(t, srv, http.MethodDelete, path, aliceKey, "")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("interval is free again", func(t *testing.T) {
		w := do(t, srv, http.MethodPost, "/api/rentals", bobKey,
			bookingJSON("2026-03-10T00:00:00Z", "2026-03-15T00:00:00Z", ""))
		require.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestSecurity(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{name: "missing key", key: "", wantCode: http.StatusUnauthorized},
		{name: "unknown key", key: "nope", wantCode: http.StatusUnauthorized},
		{name: "key of deleted user", key: ghostKey, wantCode: http.StatusUnauthorized},
		{name: "valid key", key: aliceKey, wantCode: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, nil)

			w := do(t, srv, http.MethodPost, "/api/rentals", tt.key,
				bookingJSON("2026-03-10T00:00:00Z", "2026-03-15T00:00:00Z", ""))
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, "Unauthorized", decodeError(t, w).Kind)
			}
		})
	}
}

func TestSecurity_KeyStoreFailure(t *testing.T) {
	store := memory.New()
	store.AddUser(1)
	h, err := NewHandler(HandlerConfig{}, stubBooker{}, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	repo := &mockAPIKeyRepo{err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")}
	sec := NewSecurityHandler(repo, store, testPepper)

	_, err = sec.Authenticate(context.Background(), aliceKey)
	require.Error(t, err)
	require.NotErrorIs(t, err, errUnauthorized)

	r := chi.NewRouter()
	h.Mount(r, sec)
	w := do(t, r, http.MethodPost, "/api/rentals", aliceKey,
		bookingJSON("2026-03-10T00:00:00Z", "2026-03-15T00:00:00Z", ""))
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	body := decodeError(t, w)
	assert.Equal(t, "Internal", body.Kind)
	assert.NotContains(t, body.Message, "connection refused")
}

func TestSecurity_RepositoryMismatch(t *testing.T) {
	repo := newAPIKeyRepo()
	hash := HashAPIKey(testPepper, aliceKey)
	info := repo.byHash[hash]
	info.KeyHash = HashAPIKey(testPepper, "something-else")
	repo.byHash[hash] = info

	sec := NewSecurityHandler(repo, memory.New(), testPepper)
	_, err := sec.Authenticate(context.Background(), aliceKey)
	require.ErrorIs(t, err, errUnauthorized)
}

func TestHashAPIKey(t *testing.T) {
	a := HashAPIKey([]byte("pepper"), "key")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashAPIKey([]byte("pepper"), "key"))
	assert.NotEqual(t, a, HashAPIKey([]byte("other"), "key"))
}
