// Package config handles configuration loading for coven-adapter.
//
// # Configuration File
//
// The file path comes from the COVEN_ADAPTER_CONFIG environment variable,
// falling back to $XDG_CONFIG_HOME/coven/adapter.yaml. When no file exists,
// Default() is used: authentication disabled, listening on 0.0.0.0:3978.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	bot:
//	  app_id: "${MICROSOFT_APP_ID}"
//	  app_password: "${MICROSOFT_APP_PASSWORD}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:3978"
//	  shutdown_timeout: "10s"
//
//	bot:
//	  app_id: ""                 # empty disables inbound authentication
//	  app_password: ""
//	  tenant_id: ""              # single-tenant bots only
//	  channel_service: ""        # https://botframework.azure.us for the US government cloud
//	  oauth_endpoint: ""         # token-service override
//	  openid_metadata: ""        # channel signing key metadata override
//	  oauth_connection: ""       # sign-in connection; empty disables login commands
//
//	dedupe:
//	  enabled: true
//	  ttl: "10m"
//	  max_entries: 10000
//	  sweep_interval: "1m"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
//	transcript:
//	  enabled: false  # live SSE feed at /api/transcript; requires admin.token
//
//	admin:
//	  token: "${COVEN_ADAPTER_ADMIN_TOKEN}"  # bearer token for /api/notify and /api/transcript
//
// The operator routes are mounted only when admin.token is non-empty.
//
// Duration values use Go's time.ParseDuration syntax.
package config
