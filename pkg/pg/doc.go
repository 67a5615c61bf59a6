// Package pg bootstraps PostgreSQL access with the pgx/v5 driver: pool
// configuration from the environment, connection with retries, goose
// migrations from an embedded filesystem, transactions and error helpers.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, ".", cfg, slog.Default()); err != nil {
//		return err
//	}
//
// Helpers such as IsDuplicateKeyError unwrap *pgconn.PgError so callers can
// classify failures with a single call.
package pg
