package bridge

import (
	"github.com/dop251/goja"
)

// Events the document proxy recognizes through on-handler properties
var handlerProperties = []string{"onclick", "onsubmit", "onchange", "oninput"}

// injectDocument exposes the document proxy to the script: lookup functions
// returning element proxies whose mutations are recorded on the DOM.
func (r *Runtime) injectDocument() error {
	document := r.vm.NewObject()

	byID := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		elem := r.dom.GetByID(call.Arguments[0].String())
		if elem == nil {
			return goja.Null()
		}
		return r.elementProxy(elem)
	}
	query := func(all bool) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return goja.Null()
			}
			elems := r.dom.Query(call.Arguments[0].String())
			if all {
				proxies := make([]goja.Value, 0, len(elems))
				for _, elem := range elems {
					proxies = append(proxies, r.elementProxy(elem))
				}
				return r.vm.ToValue(proxies)
			}
			if len(elems) == 0 {
				return goja.Null()
			}
			return r.elementProxy(elems[0])
		}
	}

	if err := document.Set("getElementById", byID); err != nil {
		return err
	}
	if err := document.Set("querySelector", query(false)); err != nil {
		return err
	}
	if err := document.Set("querySelectorAll", query(true)); err != nil {
		return err
	}
	if err := document.Set("createElement", r.jsCreateElement); err != nil {
		return err
	}

	return r.vm.Set("document", document)
}

// elementProxy builds the script-facing object for one element. Property
// writes land on the Go element and are recorded as changes; on-handler
// assignments register event handlers dispatchable from the host.
func (r *Runtime) elementProxy(elem *Element) goja.Value {
	vm := r.vm
	obj := vm.NewObject()

	obj.Set("tagName", elem.TagName)
	obj.Set("id", elem.ID)
	// Backing element, needed by appendChild to link proxies together
	obj.Set("_element", elem)

	obj.DefineAccessorProperty("textContent",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(elem.TextContent)
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			value := call.Arguments[0].String()
			elem.TextContent = value
			r.dom.Record(Change{Type: "set_text", TargetID: elem.ID, Value: value})
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	obj.DefineAccessorProperty("innerHTML",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(elem.InnerHTML)
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			value := call.Arguments[0].String()
			elem.InnerHTML = value
			r.dom.Record(Change{Type: "set_html", TargetID: elem.ID, Value: value})
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	obj.DefineAccessorProperty("value",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(elem.GetAttribute("value"))
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			elem.SetAttribute("value", call.Arguments[0].String())
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	obj.DefineAccessorProperty("className",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(elem.ClassName)
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			elem.SetAttribute("class", call.Arguments[0].String())
			r.dom.Record(Change{Type: "set_attribute", TargetID: elem.ID, Property: "class", Value: elem.ClassName})
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	for _, prop := range handlerProperties {
		event := prop[2:]
		obj.DefineAccessorProperty(prop,
			vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() }),
			vm.ToValue(func(call goja.FunctionCall) goja.Value {
				if handler, ok := goja.AssertFunction(call.Arguments[0]); ok {
					r.registerHandler(elem, event, handler)
				}
				return goja.Undefined()
			}),
			goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		if handler, ok := goja.AssertFunction(call.Arguments[1]); ok {
			r.registerHandler(elem, call.Arguments[0].String(), handler)
		}
		return goja.Undefined()
	})
	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		return vm.ToValue(elem.GetAttribute(call.Arguments[0].String()))
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		name := call.Arguments[0].String()
		value := call.Arguments[1].String()
		elem.SetAttribute(name, value)
		r.dom.Record(Change{Type: "set_attribute", TargetID: elem.ID, Property: name, Value: value})
		return goja.Undefined()
	})
	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		childObj := call.Arguments[0].ToObject(vm)
		if raw := childObj.Get("_element"); raw != nil {
			if child, ok := raw.Export().(*Element); ok {
				elem.AddChild(child)
				r.dom.Record(Change{Type: "append_child", TargetID: elem.ID, Value: child.TagName})
			}
		}
		return call.Arguments[0]
	})

	return obj
}

// jsCreateElement builds a detached element for later appendChild calls.
// The returned proxy wraps a Go element so appendChild can link it.
func (r *Runtime) jsCreateElement(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return goja.Null()
	}
	elem := &Element{
		TagName:    call.Arguments[0].String(),
		Attributes: make(map[string]string),
	}
	return r.elementProxy(elem)
}

func (r *Runtime) registerHandler(elem *Element, event string, handler goja.Callable) {
	if r.handlers[elem] == nil {
		r.handlers[elem] = make(map[string]goja.Callable)
	}
	r.handlers[elem][event] = handler
}
