// Package userrecords provides a small, concurrent-safe client for user records
// and their one-to-one preferences.
//
// It supports multiple storage backends (an ORM-backed store and a query-builder
// store over PostgreSQL or SQLite, plus an in-memory store), optional caching of
// unique lookups (Redis, in-memory) with optional encryption of cached records,
// and Prisma-style query inputs: filters, ordering, pagination, distinct and
// field selection.
package userrecords
