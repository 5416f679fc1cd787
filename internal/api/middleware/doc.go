// Package middleware provides HTTP middleware for the viewer host API.
//
// Middleware stack includes:
//   - CORS: any embedding origin may drive screens; trace headers are exposed
//   - RateLimit: per-IP token bucket with idle client eviction
//   - GlobalRateLimit: one bucket shared by every client
//
// Rejected requests get 429 with {"error": "rate limit exceeded"}.
package middleware
