// Package postgres owns the spendwise PostgreSQL connection and schema,
// plus the Redis and S3 clients the service connects to at start-up.
//
//	db, err := postgres.Open(ctx, postgres.ConnectionConfig{
//		URL:            cfg.Database.URL,
//		ConnectTimeout: 30 * time.Second,
//		IdleTimeout:    10 * time.Second,
//	})
//	if err := postgres.Migrate(ctx, db); err != nil { ... }
//
// Multi-statement mutations go through WithTx, which rolls back on any
// error returned by the callback.
package postgres
