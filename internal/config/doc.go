// Package config loads the server configuration.
//
// Values come from three sources, highest priority first:
//
//  1. Environment variables prefixed with GADEV_
//  2. An optional YAML file (GADEV_CONFIG_FILE, config.yaml or configs/config.yaml)
//  3. Defaults declared in the struct tags
//
// Environment variable names follow the section and field tags, for example:
//
//	GADEV_SERVER_PORT=8080
//	GADEV_LOGGING_LEVEL=debug
//	GADEV_GOOGLE_SERVICE_ACCOUNT_FILE=/secrets/sa.json
//	GADEV_BITLY_CLIENT_ID=...
//	GADEV_EXPORT_ENCODING=utf-8
//
// The equivalent YAML uses snake_case keys:
//
//	server:
//	  port: 8080
//	google:
//	  cache_ttl: 30m
//	export:
//	  strict_totals: true
//
// Relative paths (site metadata, templates, log file, service-account key)
// are resolved against the working directory first and the executable's
// directory second. Load validates the result and returns an error naming the
// first bad value.
package config
