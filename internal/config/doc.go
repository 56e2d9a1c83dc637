// Package config provides environment-based configuration.
//
// Loads from a .env file when present (godotenv), maps environment variables
// onto the Config struct via go-simpler/env struct tags, and validates limits
// and timeouts before the server starts. DATABASE_URL and REDIS_URL are
// optional: leaving them empty selects the in-memory store and the in-memory
// summary cache.
package config
