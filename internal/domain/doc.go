// Package domain contains the task entity and its lifecycle rules. It is
// the heart of the pipeline, independent of any specific infrastructure or
// delivery mechanism: transitions are validated here, and every other layer
// defers to these rules.
package domain
