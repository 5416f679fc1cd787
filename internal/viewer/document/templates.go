package document

const injectionSource = `<script>window.imageUrl = {{.ImageURL}};{{if gt .ImageWidth 0}} window.imageWidth = {{.ImageWidth}};{{end}}</script>` +
	`{{if .Preamble}}<script>{{.Preamble}}</script>{{end}}`

const pageSource = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<script src="{{.LibraryURL}}"></script>
<style>
#viewer {
  width: 100%;
  height: 100vh;
}
#displayText {
  margin: 20px;
  text-align: center;
}
button {
  display: block;
  margin: 20px auto;
}
</style>
</head>
<body>
<h1 id="displayText">{{.Placeholder}}</h1>
<button id="loadButton">{{.ButtonLabel}}</button>
<div id="viewer" style="visibility: hidden"></div>
<script>
(function (config) {
  function post(event) {
    var target = window.ReactNativeWebView || window.PhotosphereBridge;
    if (target) {
      target.postMessage(JSON.stringify(event));
    }
  }

  function log(message) {
    post({ kind: 'log', message: String(message) });
  }

  function fail(message) {
    post({ kind: 'error', message: String(message) });
  }

  log('Script loaded');

  window.loadImageUrl = function () {
    log('Inside loadImageUrl function');

    if (typeof Marzipano === 'undefined') {
      fail('Marzipano is not defined');
      return;
    }

    var imageUrl = window.imageUrl;
    if (!imageUrl) {
      fail('No image URL received.');
      document.getElementById('displayText').innerText = 'No image URL received.';
      return;
    }

    log('imageUrl found: ' + imageUrl);
    document.getElementById('displayText').style.display = 'none';
    document.getElementById('viewer').style.visibility = 'visible';

    try {
      var width = window.imageWidth || config.geometryWidth;
      var viewer = new Marzipano.Viewer(document.getElementById('viewer'));
      var source = Marzipano.ImageUrlSource.fromString(imageUrl);
      var geometry = new Marzipano.EquirectGeometry([{ width: width }]);
      var limiter = Marzipano.RectilinearView.limit.traditional(config.maxResolution, config.maxFovDegrees * Math.PI / 180);
      var view = new Marzipano.RectilinearView(null, limiter);
      var scene = viewer.createScene({
        source: source,
        geometry: geometry,
        view: view,
        pinFirstLevel: config.pinFirstLevel
      });
      scene.switchTo();
      log('Scene switched successfully');
      post({ kind: 'loaded' });
    } catch (error) {
      fail('Error in Marzipano setup: ' + (error && error.message ? error.message : error));
    }
  };

  window.addEventListener('load', function () {
    function bind(id) {
      var element = document.getElementById(id);
      if (element) {
        element.addEventListener('click', function () {
          post({ kind: 'clicked' });
          window.loadImageUrl();
        });
      }
    }
    bind('loadButton');
    bind('displayText');
    if (config.autoLoad) {
      window.loadImageUrl();
    }
  });
})({{.Config}});
</script>
</body>
</html>
`
