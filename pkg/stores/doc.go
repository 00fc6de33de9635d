// Package stores persists fit runs and walker results in SQLite.
// Schema changes are embedded migrations applied with golang-migrate.
package stores
