// Package middleware provides the HTTP middleware of the jgfinder server.
//
// It includes:
//   - Access logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - Gzip compression of JSON and feed responses
//   - The feed limit interceptor for site search feed requests
package middleware
