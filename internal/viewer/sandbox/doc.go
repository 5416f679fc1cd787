/*
Package sandbox runs viewer documents headlessly in an embedded JavaScript
runtime.

# Overview

A Runtime wraps a goja VM with an isolated global scope and a DOM proxy built
from the page markup. It executes the page the way a browser would, closely
enough for the viewer document:

 1. Parse the markup into a DOM (goquery).
 2. Bind the host globals, so they exist before any script observes them.
 3. Run each script in document order. The script whose src matches
    Config.LibraryURL installs the rendering capability when
    Config.Capability is set; every other remote script fails to load.
 4. Fire the window load event.

The capability mirrors the Marzipano constructors the document calls and
hands the final scene to the host, which validates and records it.

# Security Model

Sandboxed code cannot:
  - Reach require, process, module or exports
  - Schedule timers
  - Run longer than Config.Timeout per script or handler

The only channel out is window.ReactNativeWebView.postMessage, wired to the
Page's Poster.

# Usage Example

	rt, err := sandbox.New(sandbox.DefaultConfig())
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Load(ctx, sandbox.Page{
		HTML:    doc.HTML(),
		Globals: injection.Globals(),
		Poster:  outbound,
	})

# Pooling

Pool keeps warm runtimes. Release resets a runtime before it is reused.
*/
package sandbox
