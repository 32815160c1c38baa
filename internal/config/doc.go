// Package config loads the authstate-server YAML file.
//
// Values are layered: built-in defaults, then the file, then AUTHSTATE_*
// environment variables (AUTHSTATE_JWT_SECRET, AUTHSTATE_DB_PATH,
// AUTHSTATE_REDIS_ADDR, AUTHSTATE_ADDR, AUTHSTATE_PRODUCTION). The JWT
// secret has no default.
package config
