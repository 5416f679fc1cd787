/*
Package bridge carries messages between the host and a viewer sandbox.

The sandbox offers nothing beyond a generic postMessage primitive, so the
bridge rides two one-directional channels over it:

  - Inbound: a single Injection (image reference and geometry width) that
    must be in place before any document script runs. It is handed out at
    most once per session.
  - Outbound: an in-order stream of Events (log, loaded, error, clicked)
    posted by the document script. Anything that is not a typed event is
    accepted as a log line.

Events travel as JSON:

	{"kind":"error","message":"Marzipano is not defined"}

Host to sandbox commands use the same encoding:

	{"type":"load"}
*/
package bridge
