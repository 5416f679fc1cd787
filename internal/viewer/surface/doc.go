// Package surface hosts the viewer document for a session.
//
// Headless runs the document in a pooled goja sandbox with the rendering
// capability stood in; it is what tests and server-side validation use.
// Web renders the document for a real browser and carries the bridge over a
// WebSocket: the document's preamble forwards postMessage calls to the
// session's events endpoint, and load commands travel back the same way.
package surface
