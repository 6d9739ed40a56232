// Package middleware holds turn middleware the adapter binary installs by
// default.
package middleware
