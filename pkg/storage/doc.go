// Package storage defines the object store used for activity archives and
// its local filesystem implementation.
//
// The PostgreSQL connection, schema, Redis client and S3 implementation
// live in the postgres subpackage.
//
//	store, err := storage.NewFileSystemStore("/var/lib/spendwise/archive")
//	err = store.PutObject(ctx, "activity/2026-01-31.json", body, "application/json")
package storage
