// Package store defines interfaces for task persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the lifecycle logic, allowing the processor and service layers to remain
// independent of specific database technologies or persistence details.
package store
