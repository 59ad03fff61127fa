package jsengine

import (
	"github.com/devicelab-dev/uiprobe/pkg/actions"
	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/webdriver"
	"github.com/dop251/goja"
)

// elementHandle is what scripts receive for a located element. Its calls use
// the context of the run in progress.
type elementHandle struct {
	el     *webdriver.Element
	engine *Engine
}

func (h *elementHandle) Text() (string, error) { return h.el.Text(h.engine.ctx) }
func (h *elementHandle) Click() error          { return h.el.Click(h.engine.ctx) }
func (h *elementHandle) IsDisplayed() (bool, error) {
	return h.el.IsDisplayed(h.engine.ctx)
}
func (h *elementHandle) Attribute(name string) (string, error) {
	return h.el.Attribute(h.engine.ctx, name)
}
func (h *elementHandle) String() string { return h.el.String() }

func (e *Engine) handle(el *webdriver.Element) goja.Value {
	return e.runtime.ToValue(&elementHandle{el: el, engine: e})
}

// element unwraps a handle argument; anything else is nil.
func element(v goja.Value) *webdriver.Element {
	if h, ok := v.Export().(*elementHandle); ok {
		return h.el
	}
	return nil
}

// BindDevice exposes d to scripts as the global `device` object.
func (e *Engine) BindDevice(d *actions.Device) {
	obj := e.runtime.NewObject()
	bind := func(name string, fn func(goja.FunctionCall) goja.Value) {
		obj.Set(name, fn)
	}

	bind("clickById", func(call goja.FunctionCall) goja.Value {
		e.check(d.ClickByID(e.ctx, e.stringArgs(call, "clickById")...))
		return goja.Undefined()
	})
	bind("clickByAccessibilityId", func(call goja.FunctionCall) goja.Value {
		e.check(d.ClickByAccessibilityID(e.ctx, e.stringArg(call, 0, "clickByAccessibilityId")))
		return goja.Undefined()
	})
	bind("clickByUiAutomator", func(call goja.FunctionCall) goja.Value {
		e.check(d.ClickByUiAutomator(e.ctx, e.stringArg(call, 0, "clickByUiAutomator")))
		return goja.Undefined()
	})
	bind("clickByUiSelector", func(call goja.FunctionCall) goja.Value {
		class := e.stringArg(call, 0, "clickByUiSelector")
		e.check(d.ClickByUiSelector(e.ctx, class, int(call.Argument(1).ToInteger())))
		return goja.Undefined()
	})
	bind("tap", func(call goja.FunctionCall) goja.Value {
		e.check(d.Tap(e.ctx, element(call.Argument(0))))
		return goja.Undefined()
	})
	bind("waitForElementById", func(call goja.FunctionCall) goja.Value {
		el, ok := d.WaitForElementByID(e.ctx, e.stringArgs(call, "waitForElementById")...)
		if !ok {
			return goja.Null()
		}
		return e.handle(el)
	})
	bind("waitForElementByAccessibilityId", func(call goja.FunctionCall) goja.Value {
		el, err := d.WaitForElementByAccessibilityID(e.ctx, e.stringArg(call, 0, "waitForElementByAccessibilityId"))
		e.check(err)
		return e.handle(el)
	})
	bind("typeText", func(call goja.FunctionCall) goja.Value {
		e.check(d.TypeText(e.ctx, element(call.Argument(0)), call.Argument(1).String()))
		return goja.Undefined()
	})
	bind("pressKey", func(call goja.FunctionCall) goja.Value {
		key, err := actions.ParseKey(e.stringArg(call, 0, "pressKey"))
		e.check(err)
		e.check(d.PressKey(e.ctx, key))
		return goja.Undefined()
	})
	bind("swipeUp", func(goja.FunctionCall) goja.Value {
		e.check(d.SwipeUp(e.ctx))
		return goja.Undefined()
	})
	bind("swipeDown", func(goja.FunctionCall) goja.Value {
		e.check(d.SwipeDown(e.ctx))
		return goja.Undefined()
	})
	bind("scrollToText", func(call goja.FunctionCall) goja.Value {
		el, err := d.ScrollToText(e.ctx, e.stringArg(call, 0, "scrollToText"))
		e.check(err)
		return e.handle(el)
	})
	bind("getText", func(call goja.FunctionCall) goja.Value {
		by, err := core.ParseBy(e.stringArg(call, 0, "getText"), e.stringArg(call, 1, "getText"))
		e.check(err)
		text, err := d.ElementText(e.ctx, by)
		e.check(err)
		return e.runtime.ToValue(text)
	})
	bind("getAttribute", func(call goja.FunctionCall) goja.Value {
		by, err := core.ParseBy(e.stringArg(call, 0, "getAttribute"), e.stringArg(call, 1, "getAttribute"))
		e.check(err)
		value, err := d.ElementAttribute(e.ctx, by, e.stringArg(call, 2, "getAttribute"))
		e.check(err)
		return e.runtime.ToValue(value)
	})
	bind("uiSelectorText", func(call goja.FunctionCall) goja.Value {
		return e.runtime.ToValue(actions.UiSelectorText(e.stringArg(call, 0, "uiSelectorText")))
	})

	e.SetVariable("device", obj)
}

// check throws err into the script when it is non-nil.
func (e *Engine) check(err error) {
	if err != nil {
		e.throw(err)
	}
}

func (e *Engine) stringArg(call goja.FunctionCall, i int, fn string) string {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		panic(e.runtime.NewTypeError("%s: argument %d is required", fn, i+1))
	}
	return v.String()
}

// stringArgs collects every argument as a string; a single array argument is
// spread, so both clickById("a", "b") and clickById(["a", "b"]) work.
func (e *Engine) stringArgs(call goja.FunctionCall, fn string) []string {
	args := call.Arguments
	if len(args) == 1 {
		if arr, ok := args[0].Export().([]interface{}); ok {
			out := make([]string, 0, len(arr))
			for _, v := range arr {
				out = append(out, e.runtime.ToValue(v).String())
			}
			return out
		}
	}
	if len(args) == 0 {
		panic(e.runtime.NewTypeError("%s: at least one id is required", fn))
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.String()
	}
	return out
}
