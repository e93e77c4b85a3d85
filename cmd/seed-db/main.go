// Command seed-db loads the catalog (offers, products, modifiers), coupons,
// and a default admin API key into the database. Everything is upserted, so
// re-running against an existing database is safe.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"souq/internal/domain/coupon"
	"souq/internal/repository"
)

type catalogJSON struct {
	Offers   []offerJSON   `json:"offers"`
	Products []productJSON `json:"products"`
	Coupons  []couponJSON  `json:"coupons"`
}

type offerJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	Scope     string          `json:"scope"`
	Active    bool            `json:"active"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
}

type productJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Active    bool            `json:"active"`
	OfferID   *string         `json:"offerId"`
	Modifiers []modifierJSON  `json:"modifiers"`
}

type modifierJSON struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Options []optionJSON `json:"options"`
}

type optionJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type couponJSON struct {
	ID          string           `json:"id"`
	Code        string           `json:"code"`
	Type        string           `json:"type"`
	Value       decimal.Decimal  `json:"value"`
	MinPurchase *decimal.Decimal `json:"minPurchase"`
	UsageLimit  *int             `json:"usageLimit"`
	ExpireAt    time.Time        `json:"expireAt"`
	Active      bool             `json:"active"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or SOUQ_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SOUQ_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SOUQ_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SOUQ_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	if err := seedOffers(ctx, pool, catalog.Offers); err != nil {
		return errors.Wrap(err, "seed offers")
	}
	if err := seedProducts(ctx, pool, catalog.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool, catalog.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if apiKey != "" {
		if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}

	return nil
}

const upsertOfferSQL = `INSERT INTO offers (id, name, type, value, scope, active, start_date, end_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET name = $2, type = $3, value = $4, scope = $5,
		active = $6, start_date = $7, end_date = $8`

func seedOffers(ctx context.Context, pool *pgxpool.Pool, offers []offerJSON) error {
	slog.Info("upserting offers", slog.Int("count", len(offers)))

	for _, o := range offers {
		_, err := pool.Exec(ctx, upsertOfferSQL,
			o.ID, o.Name, o.Type, o.Value, o.Scope, o.Active, o.StartDate, o.EndDate)
		if err != nil {
			return errors.Wrapf(err, "upsert offer %s", o.ID)
		}
		slog.Info("upserted offer", slog.String("id", o.ID), slog.String("name", o.Name))
	}
	return nil
}

const (
	upsertProductSQL = `INSERT INTO products (id, name, price, category, active, offer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, category = $4, active = $5, offer_id = $6`

	upsertModifierSQL = `INSERT INTO modifiers (id, product_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET product_id = $2, name = $3`

	upsertOptionSQL = `INSERT INTO modifier_options (id, modifier_id, name, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET modifier_id = $2, name = $3, price = $4`
)

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.Category, p.Active, p.OfferID)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for _, m := range p.Modifiers {
			if _, err := pool.Exec(ctx, upsertModifierSQL, m.ID, p.ID, m.Name); err != nil {
				return errors.Wrapf(err, "upsert modifier %s", m.ID)
			}
			for _, opt := range m.Options {
				if _, err := pool.Exec(ctx, upsertOptionSQL, opt.ID, m.ID, opt.Name, opt.Price); err != nil {
					return errors.Wrapf(err, "upsert option %s", opt.ID)
				}
			}
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

const upsertCouponSQL = `INSERT INTO coupons (id, code, type, value, min_purchase, usage_limit, expire_at, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET code = $2, type = $3, value = $4,
		min_purchase = $5, usage_limit = $6, expire_at = $7, active = $8`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.ID, coupon.Canonicalize(c.Code), c.Type, c.Value,
			c.MinPurchase, c.UsageLimit, c.ExpireAt, c.Active)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		slog.Info("upserted coupon", slog.String("code", c.Code))
	}
	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (id) DO UPDATE SET key_hash = $2, name = $3, scopes = $4, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, upsertAPIKeySQL,
		"default", keyHash, "Default admin key", []string{"admin"})
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
