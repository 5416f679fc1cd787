package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<!DOCTYPE html>
<html><head><script src="lib.js"></script></head>
<body>
<h1 id="title" class="big bold">Hello <em>there</em></h1>
<div id="pane" style="visibility: hidden; width: 100%"><span class="bold">x</span></div>
<script>var a = 1;</script>
</body></html>`

func TestParseDOM(t *testing.T) {
	dom, err := ParseDOM(sample)
	require.NoError(t, err)

	title := dom.ByID("title")
	require.NotNil(t, title)
	assert.Equal(t, "h1", title.TagName)
	assert.Equal(t, "Hello there", title.TextContent)

	pane := dom.ByID("pane")
	require.NotNil(t, pane)
	assert.Equal(t, "hidden", pane.Style["visibility"])
	assert.Equal(t, "100%", pane.Style["width"])
	assert.False(t, pane.Visible())
	assert.False(t, pane.Children[0].Visible(), "hidden ancestors hide children")

	assert.Len(t, dom.Query(".bold"), 2)
	assert.Len(t, dom.Query("script"), 2)
	assert.Empty(t, dom.Query("#nope"))

	assert.Equal(t, []Script{{Src: "lib.js"}, {Text: "var a = 1;"}}, dom.Scripts())
}

func TestElementMutationsAreRecorded(t *testing.T) {
	dom, err := ParseDOM(sample)
	require.NoError(t, err)

	pane := dom.ByID("pane")
	pane.SetStyle("visibility", "visible")
	dom.ByID("title").SetText("Bye")

	assert.True(t, pane.Visible())
	assert.Equal(t, "Bye", dom.ByID("title").TextContent)
	assert.Equal(t, []DOMChange{
		{Type: "set_style", Target: "pane", Property: "visibility", Value: "visible"},
		{Type: "set_text", Target: "title", Property: "textContent", Value: "Bye"},
	}, dom.GetChanges())
}

func TestProxyStyleAndIdentity(t *testing.T) {
	rt := newRuntime(t, nil)

	_, err := rt.Load(t.Context(), Page{HTML: `<div id="pane" style="display: block"></div><script>
		var el = document.getElementById('pane');
		var same = el === document.querySelector('#pane');
		el.style.backgroundColor = 'red';
		el.style.display = 'none';
		var display = el.style.display;
		var missing = document.getElementById('nope') === null;
		var count = document.querySelectorAll('div').length;
	</script>`})
	require.NoError(t, err)

	assert.Equal(t, true, rt.Global("same"))
	assert.Equal(t, "none", rt.Global("display"))
	assert.Equal(t, true, rt.Global("missing"))
	assert.Equal(t, int64(1), rt.Global("count"))

	pane, ok := rt.Element("pane")
	require.True(t, ok)
	assert.Equal(t, "red", pane.Style["background-color"])
	assert.False(t, pane.Visible)
}
