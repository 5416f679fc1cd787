/*
Package provisioning prepares panorama assets before they reach a sandbox.

A Pipeline decides whether a reference needs provisioning and opens one
Adapter per viewer session. The Adapter runs the steps in order:

 1. Fetch: remote sources are downloaded into the cache (optional).
 2. Resize: oversized sources are scaled into the bounds and re-encoded.
 3. Probe: the final asset's width drives the equirectangular geometry.
 4. Serve: a gin listener on a random port in the reserved range.

Each step falls back to the unmodified reference when it fails. Only a
local reference that can be neither served nor handed over as a file URL
is reported as ErrUnusableReference.

An Adapter holds at most one listener. Serve stops the previous listener
before binding a new one and Stop is a no-op when nothing is running.
*/
package provisioning
