// gatectl is the command-line interface for the gatekeeper access-control
// server.
//
// Gatekeeper sits in front of a vocational-training site and decides, per
// request, whether the caller may see the page or is redirected. Roles are
// read live from PostgreSQL for admin pages and resolved asynchronously at
// sign-in for everything the UI shows.
//
// # Quick Start
//
//	# Run database migrations
//	gatectl db migrate
//
//	# Assign someone a role
//	gatectl role set alice admin
//
//	# Start the server
//	export GATEKEEPER_SESSION_KEY=$(head -c 32 /dev/urandom | base64)
//	gatectl server
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string
//   - GATEKEEPER_SESSION_KEY: Base64-encoded key for session cookie signing
//   - GATEKEEPER_CONFIG_PATH: Directory holding gatekeeper.yml
//   - GATEKEEPER_LOG_LEVEL: Log level (debug, info, warn, error)
//   - GATEKEEPER_AUDIT_ENABLED: Set to "false" to disable audit logging
//   - PORT: Server port (default: 8000)
package main
