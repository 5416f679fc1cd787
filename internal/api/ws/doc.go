// Package ws bridges browser WebSocket connections to viewer sessions.
//
// A document served at /sessions/:id/document opens /sessions/:id/events.
// Text frames from the browser are posted to the session's outbound
// channel; load commands flow back as JSON text frames.
package ws
