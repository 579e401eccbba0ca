package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/rentacar/internal/domain/auth"
	"github.com/xenking/rentacar/internal/domain/coupon"
	"github.com/xenking/rentacar/internal/domain/vehicle"
	"github.com/xenking/rentacar/internal/handler"
	"github.com/xenking/rentacar/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		vehiclesFile string
		userEmail    string
		apiKey       string
		apiKeyPepper string
		reset        bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&vehiclesFile, "vehicles-file", "db/seed/vehicles.json", "path to vehicles JSON file")
	flag.StringVar(&userEmail, "user-email", "demo@example.com", "email of the demo renter")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed for the demo renter (or RENTAL_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or RENTAL_API_KEY_PEPPER env)")
	flag.BoolVar(&reset, "reset", false, "roll back all migrations before seeding")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("RENTAL_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or RENTAL_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("RENTAL_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, vehiclesFile, userEmail, apiKey, apiKeyPepper, reset); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, vehiclesFile, userEmail, apiKey, pepper string, reset bool) error {
	if reset {
		slog.Warn("resetting schema")
		if err := postgres.ResetMigrations(ctx, databaseURL); err != nil {
			return errors.Wrap(err, "reset migrations")
		}
	}

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	userID, err := postgres.NewUserRepository(pool).Upsert(ctx, userEmail, "Demo Renter")
	if err != nil {
		return errors.Wrap(err, "seed user")
	}
	slog.Info("upserted user", slog.Int64("id", userID), slog.String("email", userEmail))

	if err := seedVehicles(ctx, postgres.NewVehicleRepository(pool), vehiclesFile); err != nil {
		return errors.Wrap(err, "seed vehicles")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	info := auth.APIKeyInfo{
		ID:      "demo",
		KeyHash: handler.HashAPIKey([]byte(pepper), apiKey),
		Name:    "Demo renter key",
		UserID:  userID,
	}
	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	slog.Info("upserted API key", slog.String("id", info.ID), slog.Int64("user_id", userID))

	return nil
}

func seedVehicles(ctx context.Context, repo *postgres.VehicleRepository, path string) error {
	slog.Info("reading vehicles file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read vehicles file")
	}
	vehicles, err := decodeVehicles(data)
	if err != nil {
		return errors.Wrap(err, "parse vehicles JSON")
	}

	slog.Info("upserting vehicles", slog.Int("count", len(vehicles)))
	for i := range vehicles {
		v := &vehicles[i]
		if err := repo.Upsert(ctx, v); err != nil {
			return errors.Wrapf(err, "upsert vehicle %s", v.Name)
		}
		slog.Info("upserted vehicle", slog.Int64("id", v.ID), slog.String("name", v.Name), slog.String("price_per_day", v.PricePerDay.String()))
	}
	return nil
}

// decodeVehicles parses [{"name":..,"pricePerDay":"45.00","isAvailable":true}].
func decodeVehicles(data []byte) ([]vehicle.Vehicle, error) {
	var out []vehicle.Vehicle
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		v := vehicle.Vehicle{IsAvailable: true}
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "name":
				s, err := d.Str()
				v.Name = s
				return err
			case "pricePerDay":
				s, err := d.Str()
				if err != nil {
					return err
				}
				v.PricePerDay, err = decimal.NewFromString(s)
				return err
			case "isAvailable":
				b, err := d.Bool()
				v.IsAvailable = b
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		if v.Name == "" {
			return errors.New("vehicle without name")
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding demo coupons")

	coupons := []coupon.Coupon{
		{Code: "WELCOME10", DiscountPercent: decimal.NewFromInt(10), Description: "10% off your first rental"},
		{Code: "SPRING20", DiscountPercent: decimal.NewFromInt(20), Description: "Spring sale: 20% off"},
	}
	for i := range coupons {
		c := &coupons[i]
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}
	return nil
}
