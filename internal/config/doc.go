// Package config handles configuration loading, parsing, and validation
// from environment variables. It provides type-safe access to the settings
// shared by the API and worker processes while keeping configuration
// details separate from business logic.
package config
