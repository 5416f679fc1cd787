package sandbox

import (
	"strings"
	"unicode"

	"github.com/dop251/goja"
)

var elementKeys = []string{
	"id", "tagName", "className", "textContent", "innerText", "style", "parentNode",
	"getAttribute", "setAttribute", "addEventListener", "click",
}

// injectDOM injects DOM proxy into runtime
func (r *Runtime) injectDOM() {
	document := r.vm.NewObject()

	document.Set("getElementById", func(id string) goja.Value {
		return r.proxy(r.dom.ByID(id))
	})
	document.Set("querySelector", func(selector string) goja.Value {
		if elems := r.dom.Query(selector); len(elems) > 0 {
			return r.proxy(elems[0])
		}
		return goja.Null()
	})
	document.Set("querySelectorAll", func(selector string) goja.Value {
		return r.proxyAll(r.dom.Query(selector))
	})
	document.Set("getElementsByTagName", func(tag string) goja.Value {
		return r.proxyAll(r.dom.Query(tag))
	})
	document.Set("getElementsByClassName", func(class string) goja.Value {
		return r.proxyAll(r.dom.Query("." + class))
	})

	r.vm.Set("document", document)
}

// proxy returns the stable script object for an element
func (r *Runtime) proxy(el *Element) goja.Value {
	if el == nil {
		return goja.Null()
	}
	if obj, ok := r.proxies[el]; ok {
		return obj
	}
	e := &elementObject{r: r, el: el, extra: make(map[string]goja.Value)}
	e.style = r.vm.NewDynamicObject(&styleObject{r: r, el: el})
	obj := r.vm.NewDynamicObject(e)
	r.proxies[el] = obj
	return obj
}

func (r *Runtime) proxyAll(elems []*Element) goja.Value {
	values := make([]any, 0, len(elems))
	for _, el := range elems {
		values = append(values, r.proxy(el))
	}
	return r.vm.NewArray(values...)
}

// elementObject exposes an Element to script
type elementObject struct {
	r     *Runtime
	el    *Element
	style *goja.Object
	extra map[string]goja.Value
}

func (e *elementObject) Get(key string) goja.Value {
	vm := e.r.vm
	switch key {
	case "id":
		return vm.ToValue(e.el.ID)
	case "tagName":
		return vm.ToValue(strings.ToUpper(e.el.TagName))
	case "className":
		return vm.ToValue(e.el.ClassName)
	case "textContent", "innerText":
		return vm.ToValue(e.el.TextContent)
	case "style":
		return e.style
	case "parentNode":
		if e.el.Parent == nil || e.el.Parent.TagName == "document" {
			return goja.Null()
		}
		return e.r.proxy(e.el.Parent)
	case "getAttribute":
		return vm.ToValue(func(name string) goja.Value {
			if v, ok := e.el.Attributes[name]; ok {
				return vm.ToValue(v)
			}
			return goja.Null()
		})
	case "setAttribute":
		return vm.ToValue(func(name, value string) {
			e.el.SetAttribute(name, value)
		})
	case "addEventListener":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			event := call.Argument(0).String()
			if fn, ok := goja.AssertFunction(call.Argument(1)); ok {
				e.el.AddListener(event, e.r.listener(fn, e.r.proxy(e.el), event))
			}
			return goja.Undefined()
		})
	case "click":
		return vm.ToValue(func() error {
			for _, l := range e.el.Listeners("click") {
				if err := l(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return e.extra[key]
}

func (e *elementObject) Set(key string, val goja.Value) bool {
	switch key {
	case "textContent", "innerText":
		e.el.SetText(val.String())
	case "className":
		e.el.SetAttribute("class", val.String())
	case "id":
		e.el.SetAttribute("id", val.String())
	case "tagName", "style", "parentNode":
		return false
	default:
		e.extra[key] = val
	}
	return true
}

func (e *elementObject) Has(key string) bool {
	for _, k := range elementKeys {
		if k == key {
			return true
		}
	}
	_, ok := e.extra[key]
	return ok
}

func (e *elementObject) Delete(key string) bool {
	delete(e.extra, key)
	return true
}

func (e *elementObject) Keys() []string {
	keys := append([]string{}, elementKeys...)
	for k := range e.extra {
		keys = append(keys, k)
	}
	return keys
}

// styleObject maps element.style.camelCase onto inline css properties
type styleObject struct {
	r  *Runtime
	el *Element
}

func (s *styleObject) Get(key string) goja.Value {
	return s.r.vm.ToValue(s.el.Style[cssProperty(key)])
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	s.el.SetStyle(cssProperty(key), val.String())
	return true
}

func (s *styleObject) Has(key string) bool {
	_, ok := s.el.Style[cssProperty(key)]
	return ok
}

func (s *styleObject) Delete(key string) bool {
	delete(s.el.Style, cssProperty(key))
	return true
}

func (s *styleObject) Keys() []string {
	keys := make([]string, 0, len(s.el.Style))
	for k := range s.el.Style {
		keys = append(keys, k)
	}
	return keys
}

// cssProperty converts backgroundColor to background-color
func cssProperty(name string) string {
	var b strings.Builder
	for _, c := range name {
		if unicode.IsUpper(c) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(c))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
