// Package postgres provides the PostgreSQL implementation of the task
// storage interface defined in the internal/store package. It handles query
// execution and mapping between domain entities and database records; the
// lifecycle transitions are conditional updates so concurrent duplicate
// deliveries cannot race past the terminal-state guard.
package postgres
