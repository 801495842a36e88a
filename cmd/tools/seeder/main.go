package main

import (
	"context"
	"log"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-faktur/internal/config"
	"github.com/noah-isme/backend-faktur/internal/db"
)

// Seeds the plan catalog, a default tenant on the free plan, and an admin
// user (admin@example.com / password "changeme123"). Safe to re-run.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	freeID := seedPlans(ctx, pool)
	tenantID := seedTenant(ctx, pool, freeID)
	seedAdmin(ctx, pool, tenantID)

	log.Printf("seeding completed, default tenant %s", tenantID)
}

func seedPlans(ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	plans := []struct {
		slug  string
		name  string
		desc  string
		price int64
		limit int64
	}{
		{"free", "Free", "Up to 5 documents per month", 0, 5},
		{"pro", "Pro", "Up to 200 documents per month", 900, 200},
		{"business", "Business", "Unlimited documents", 2900, 0},
	}

	var freeID uuid.UUID
	for _, p := range plans {
		var id uuid.UUID
		err := pool.QueryRow(ctx, `
			INSERT INTO plans (id, slug, name, description, price_cents, monthly_document_limit)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (slug) DO UPDATE SET
				name = EXCLUDED.name, description = EXCLUDED.description,
				price_cents = EXCLUDED.price_cents,
				monthly_document_limit = EXCLUDED.monthly_document_limit
			RETURNING id`,
			uuid.New(), p.slug, p.name, p.desc, p.price, p.limit).Scan(&id)
		if err != nil {
			log.Fatalf("seed plan %s: %v", p.slug, err)
		}
		if p.slug == "free" {
			freeID = id
		}
	}
	return freeID
}

func seedTenant(ctx context.Context, pool *pgxpool.Pool, planID uuid.UUID) uuid.UUID {
	var id uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO tenants (id, slug, name, currency_symbol, plan_id)
		VALUES ($1, 'default', 'Default Tenant', '$', $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		uuid.New(), planID).Scan(&id)
	if err != nil {
		log.Fatalf("seed default tenant: %v", err)
	}
	return id
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) {
	hash, err := argon2id.CreateHash("changeme123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("hash admin password: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, tenant_id, name, email, password_hash, roles)
		VALUES ($1, $2, 'Admin', 'admin@example.com', $3, '{admin,member}')
		ON CONFLICT (tenant_id, email) DO NOTHING`,
		uuid.New(), tenantID, hash)
	if err != nil {
		log.Fatalf("seed admin user: %v", err)
	}
}
