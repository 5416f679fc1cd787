package sandbox

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// capabilitySource stands in for the Marzipano library. It keeps the
// constructor surface the viewer document uses and hands the finished scene
// to the host, which validates and records it.
const capabilitySource = `(function (host) {
  function ImageUrlSource(url) {
    this.url = url;
  }
  ImageUrlSource.fromString = function (url) {
    if (typeof url !== 'string' || url.length === 0) {
      throw new Error('ImageUrlSource requires a URL string');
    }
    return new ImageUrlSource(url);
  };

  function EquirectGeometry(levels) {
    if (!levels || typeof levels.length !== 'number' || levels.length === 0) {
      throw new Error('EquirectGeometry requires at least one level');
    }
    this.levels = levels;
  }

  function RectilinearView(params, limiter) {
    this.params = params || null;
    this.limiter = limiter || null;
  }
  RectilinearView.limit = {
    traditional: function (maxResolution, maxFov) {
      return { maxResolution: maxResolution, maxFov: maxFov };
    }
  };

  function Scene(viewer, spec) {
    this.viewer = viewer;
    this.spec = spec;
  }
  Scene.prototype.switchTo = function () {
    var spec = this.spec;
    var limiter = spec.view.limiter || {};
    var levels = [];
    for (var i = 0; i < spec.geometry.levels.length; i++) {
      levels.push({ width: spec.geometry.levels[i].width });
    }
    var message = host.switchTo(JSON.stringify({
      element: this.viewer.element.id,
      source: spec.source.url,
      levels: levels,
      maxResolution: limiter.maxResolution,
      maxFov: limiter.maxFov,
      pinFirstLevel: !!spec.pinFirstLevel
    }));
    if (message) {
      throw new Error(message);
    }
  };

  function Viewer(element) {
    if (!element) {
      throw new Error('Viewer requires a container element');
    }
    this.element = element;
  }
  Viewer.prototype.createScene = function (spec) {
    if (!spec || !(spec.source instanceof ImageUrlSource)) {
      throw new Error('createScene requires an image source');
    }
    if (!(spec.geometry instanceof EquirectGeometry)) {
      throw new Error('createScene requires an equirectangular geometry');
    }
    if (!(spec.view instanceof RectilinearView)) {
      throw new Error('createScene requires a rectilinear view');
    }
    return new Scene(this, spec);
  };

  return {
    Viewer: Viewer,
    ImageUrlSource: ImageUrlSource,
    EquirectGeometry: EquirectGeometry,
    RectilinearView: RectilinearView
  };
})`

var capabilityProgram = goja.MustCompile("marzipano.js", capabilitySource, false)

// installCapability binds the global Marzipano object
func (r *Runtime) installCapability() error {
	factory, err := r.vm.RunProgram(capabilityProgram)
	if err != nil {
		return fmt.Errorf("compile capability: %w", err)
	}
	build, ok := goja.AssertFunction(factory)
	if !ok {
		return fmt.Errorf("capability factory is not a function")
	}

	host := r.vm.NewObject()
	if err := host.Set("switchTo", r.switchTo); err != nil {
		return err
	}

	marzipano, err := build(goja.Undefined(), host)
	if err != nil {
		return fmt.Errorf("build capability: %w", err)
	}
	return r.vm.Set("Marzipano", marzipano)
}

// switchTo receives a scene from the capability. A non-empty return is
// thrown back into the page as an Error.
func (r *Runtime) switchTo(raw string) string {
	var scene Scene
	if err := sonic.UnmarshalString(raw, &scene); err != nil {
		return "invalid scene: " + err.Error()
	}
	if err := scene.Validate(); err != nil {
		return err.Error()
	}
	r.scenes = append(r.scenes, scene)
	return ""
}
