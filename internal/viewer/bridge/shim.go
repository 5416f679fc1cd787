package bridge

import (
	"fmt"

	"github.com/bytedance/sonic"
)

const shimTemplate = `(function () {
  if (window.ReactNativeWebView) {
    return;
  }
  var path = %s;
  var queue = [];
  var socket = null;
  function endpoint() {
    var scheme = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
    return scheme + window.location.host + path;
  }
  function flush() {
    while (queue.length > 0 && socket && socket.readyState === 1) {
      socket.send(queue.shift());
    }
  }
  socket = new WebSocket(endpoint());
  socket.onopen = flush;
  socket.onmessage = function (event) {
    var command;
    try {
      command = JSON.parse(event.data);
    } catch (e) {
      return;
    }
    if (command && command.type === 'load' && typeof window.loadImageUrl === 'function') {
      window.loadImageUrl();
    }
  };
  window.PhotosphereBridge = {
    postMessage: function (data) {
      queue.push(String(data));
      flush();
    }
  };
})();`

// Shim returns the browser preamble that installs window.PhotosphereBridge.
// Messages are forwarded over a WebSocket at eventsPath on the serving host
// and queued until the socket opens. A native ReactNativeWebView wins.
func Shim(eventsPath string) (string, error) {
	quoted, err := sonic.ConfigStd.MarshalToString(eventsPath)
	if err != nil {
		return "", fmt.Errorf("encode events path: %w", err)
	}
	return fmt.Sprintf(shimTemplate, quoted), nil
}
