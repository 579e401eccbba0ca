// Package memory implements rental.Store in process memory.
//
// Sessions are fully serialized: Do holds the store mutex for the whole
// callback and works on a copy of the state that replaces the committed
// state only when the callback succeeds. It backs the engine and handler
// tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xenking/rentacar/internal/domain/coupon"
	"github.com/xenking/rentacar/internal/domain/rental"
	"github.com/xenking/rentacar/internal/domain/vehicle"
)

var _ rental.Store = (*Store)(nil)

type state struct {
	users       map[int64]struct{}
	vehicles    map[int64]vehicle.Vehicle
	coupons     map[int64]coupon.Coupon
	rentals     map[int64]rental.Rental
	redemptions map[int64]coupon.Redemption

	nextRentalID     int64
	nextRedemptionID int64
}

func (s *state) clone() *state {
	return &state{
		users:            maps.Clone(s.users),
		vehicles:         maps.Clone(s.vehicles),
		coupons:          maps.Clone(s.coupons),
		rentals:          maps.Clone(s.rentals),
		redemptions:      maps.Clone(s.redemptions),
		nextRentalID:     s.nextRentalID,
		nextRedemptionID: s.nextRedemptionID,
	}
}

// Store is an in-memory rental.Store.
type Store struct {
	mu    sync.Mutex
	st    *state
	clock func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		st: &state{
			users:       make(map[int64]struct{}),
			vehicles:    make(map[int64]vehicle.Vehicle),
			coupons:     make(map[int64]coupon.Coupon),
			rentals:     make(map[int64]rental.Rental),
			redemptions: make(map[int64]coupon.Redemption),
		},
		clock: time.Now,
	}
}

// AddUser registers a renter account.
func (s *Store) AddUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[id] = struct{}{}
}

// AddVehicle inserts or replaces a vehicle.
func (s *Store) AddVehicle(v vehicle.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.vehicles[v.ID] = v
}

// AddCoupon inserts or replaces a coupon. Codes are stored upper-cased.
// It panics on a percentage the coupons table would reject.
func (s *Store) AddCoupon(c coupon.Coupon) {
	if !coupon.ValidPercent(c.DiscountPercent) {
		panic(coupon.ErrInvalidPercent)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Code = strings.ToUpper(c.Code)
	s.st.coupons[c.ID] = c
}

// Rentals returns a snapshot of committed rentals ordered by ID.
func (s *Store) Rentals() []rental.Rental {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rental.Rental, 0, len(s.st.rentals))
	for _, r := range s.st.rentals {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Redemptions returns a snapshot of committed coupon redemptions.
func (s *Store) Redemptions() []coupon.Redemption {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coupon.Redemption, 0, len(s.st.redemptions))
	for _, r := range s.st.redemptions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Exists implements user.Repository.
func (s *Store) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.st.users[id]
	return ok, nil
}

// Do runs fn against a private copy of the state and publishes the copy
// only if fn returns nil.
func (s *Store) Do(ctx context.Context, fn func(rental.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.st.clone()
	if err := fn(&session{st: staged, now: s.clock}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = staged
	return nil
}

type session struct {
	st  *state
	now func() time.Time
}

func (s *session) Vehicles() vehicle.Repository { return vehicleRepo{s} }
func (s *session) Coupons() coupon.Repository   { return couponRepo{s} }
func (s *session) Rentals() rental.Repository   { return rentalRepo{s} }

type vehicleRepo struct{ s *session }

func (r vehicleRepo) GetByID(_ context.Context, id int64) (*vehicle.Vehicle, error) {
	v, ok := r.s.st.vehicles[id]
	if !ok {
		return nil, vehicle.ErrNotFound
	}
	return &v, nil
}

type couponRepo struct{ s *session }

func (r couponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := r.s.findCoupon(code)
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (r couponRepo) HasUserRedeemed(_ context.Context, code string, userID int64) (bool, error) {
	c, ok := r.s.findCoupon(code)
	if !ok {
		return false, nil
	}
	return r.s.redeemed(c.ID, userID), nil
}

func (r couponRepo) Redeem(_ context.Context, red *coupon.Redemption) error {
	if r.s.redeemed(red.CouponID, red.UserID) {
		return rental.ErrCouponAlreadyRedeemed
	}
	r.s.st.nextRedemptionID++
	red.ID = r.s.st.nextRedemptionID
	red.CreatedAt = r.s.now()
	r.s.st.redemptions[red.ID] = *red
	return nil
}

func (s *session) findCoupon(code string) (coupon.Coupon, bool) {
	for _, c := range s.st.coupons {
		if strings.EqualFold(c.Code, code) {
			return c, true
		}
	}
	return coupon.Coupon{}, false
}

func (s *session) redeemed(couponID, userID int64) bool {
	for _, red := range s.st.redemptions {
		if red.CouponID == couponID && red.UserID == userID {
			return true
		}
	}
	return false
}

type rentalRepo struct{ s *session }

// LockVehicle is a no-op: Do already serializes every session.
func (r rentalRepo) LockVehicle(_ context.Context, vehicleID int64) error {
	if _, ok := r.s.st.vehicles[vehicleID]; !ok {
		return vehicle.ErrNotFound
	}
	return nil
}

func (r rentalRepo) ListByVehicle(_ context.Context, vehicleID int64, endAfter time.Time) ([]rental.Rental, error) {
	var out []rental.Rental
	for _, existing := range r.s.st.rentals {
		if existing.VehicleID == vehicleID && existing.EndDate.After(endAfter) {
			out = append(out, existing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r rentalRepo) Create(_ context.Context, rent *rental.Rental) error {
	// Mirrors the exclusion constraint of the Postgres schema.
	for _, existing := range r.s.st.rentals {
		if existing.VehicleID == rent.VehicleID && existing.Interval().Overlaps(rent.Interval()) {
			return rental.ErrVehicleUnavailable
		}
	}
	r.s.st.nextRentalID++
	rent.ID = r.s.st.nextRentalID
	rent.CreatedAt = r.s.now()
	r.s.st.rentals[rent.ID] = *rent
	return nil
}

func (r rentalRepo) Delete(_ context.Context, id, userID int64) error {
	existing, ok := r.s.st.rentals[id]
	if !ok || existing.RentedBy != userID {
		return rental.ErrRentalNotFound
	}
	delete(r.s.st.rentals, id)
	for redID, red := range r.s.st.redemptions {
		if red.RentalID == id {
			delete(r.s.st.redemptions, redID)
		}
	}
	return nil
}
