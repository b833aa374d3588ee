// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS, logging,
// CORS, body limits); AppConfig is everything specific to this service:
// where its MongoDB lives, what the public workspace is called, how hard the
// admin API may be hit, and how patient store calls are.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// PublicWorkspaceName is the display name of the public singleton
	// workspace, ensured at startup.
	PublicWorkspaceName string

	// Rate limiting for the admin API
	RateLimitRequests int           // Max requests per window per client IP
	RateLimitWindow   time.Duration // Window duration

	// Timeout tiers for store calls
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
