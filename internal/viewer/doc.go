// Package viewer owns the lifecycle of panorama screens.
//
// A Controller drives one screen through its phases:
//
//	idle ──► provisioning ──► rendering
//	  │            │              ▲
//	  │            └──► idle      │
//	  └───────────────────────────┘
//
// Any phase moves to torn_down when the screen unmounts or the image
// reference changes. Each reference gets its own session; a session's
// provisioning listener is stopped and its sandbox closed before the next
// session starts provisioning.
//
// Surfaces host the sandboxed document. The controller only sees the
// Surface and Instance interfaces; see package surface for the headless
// and web implementations.
package viewer
