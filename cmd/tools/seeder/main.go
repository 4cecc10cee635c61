// Command seeder applies the schema and loads the postal code whitelist of a
// catalog fixture into Postgres.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/shipping"
	"github.com/noah-isme/toko-cart/internal/store"
)

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	file := flag.String("catalog", os.Getenv("CATALOG_FILE"), "catalog fixture holding postal_codes")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if *file == "" {
		logger.Fatal().Msg("catalog fixture not set")
	}

	snap, err := catalog.LoadFile(*file)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *file).Msg("load catalog")
	}
	if err := store.Migrate(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	dir := shipping.NewPGDirectory(pool)
	rows := snap.PostalCodes()
	for _, rate := range rows {
		if err := dir.Upsert(ctx, rate); err != nil {
			logger.Fatal().Err(err).Msg("seed postal code")
		}
	}
	logger.Info().Int("postal_codes", len(rows)).Msg("seeding completed")
}
