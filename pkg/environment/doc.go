// Package environment names the deployment environments the service runs in
// and normalizes APP_ENV values into them.
package environment
