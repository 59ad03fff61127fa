// Package jsengine runs JavaScript scenarios against a device session.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/logger"
	"github.com/dop251/goja"
)

// Engine wraps a goja runtime with the scenario globals.
type Engine struct {
	runtime *goja.Runtime
	output  map[string]interface{}

	// ctx is the context of the script currently running; bindings use it
	// for lookups so a cancelled run stops waiting.
	ctx context.Context
	mu  sync.Mutex
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime: goja.New(),
		output:  make(map[string]interface{}),
		ctx:     context.Background(),
	}
	e.runtime.SetFieldNameMapper(goja.UncapFieldNameMapper())
	e.setupBuiltins()
	return e
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.runtime.Set("json", e.jsonFunc())
	e.runtime.Set("output", e.output)
	e.runtime.Set("env", map[string]interface{}{})
	e.runtime.Set("sleep", e.sleepFunc())
	e.runtime.Set("assert", e.assertFunc())
}

// setupConsole routes console.log, console.warn and console.error to the
// run log.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(logf func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			logf("[js] %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper, which parses a JSON string.
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		parse, _ := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		result, err := parse(goja.Undefined(), call.Arguments[0])
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	}
}

// sleepFunc pauses the script for the given number of milliseconds. A
// cancelled run interrupts the pause.
func (e *Engine) sleepFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		ms := call.Argument(0).ToInteger()
		if ms <= 0 {
			return goja.Undefined()
		}
		t := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer t.Stop()
		select {
		case <-t.C:
		case <-e.ctx.Done():
			e.throw(e.ctx.Err())
		}
		return goja.Undefined()
	}
}

// assertFunc throws an assertion failure when its first argument is falsy.
func (e *Engine) assertFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if call.Argument(0).ToBoolean() {
			return goja.Undefined()
		}
		msg := "assertion failed"
		if m := call.Argument(1); !goja.IsUndefined(m) {
			msg = m.String()
		}
		e.throw(core.ErrAssertionFailed.WithMessage(msg))
		return goja.Undefined()
	}
}

// throw raises err inside the running script as a JS exception. The Go error
// stays reachable through the exception, so errors.Is works on Run's result.
func (e *Engine) throw(err error) {
	panic(e.runtime.NewGoError(err))
}

// SetVariable sets a global visible to scripts.
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Set(name, value)
}

// SetEnv exposes env to scripts as the read-only `env` object.
func (e *Engine) SetEnv(env map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obj := e.runtime.NewObject()
	for k, v := range env {
		obj.DefineDataProperty(k, e.runtime.ToValue(v), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	obj.PreventExtensions()
	e.runtime.Set("env", obj)
}

// GetOutput returns a copy of the output object (values set by scripts)
func (e *Engine) GetOutput() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	source := e.output
	if v := e.runtime.Get("output"); v != nil && !goja.IsUndefined(v) {
		if m, ok := v.Export().(map[string]interface{}); ok {
			source = m
		}
	}

	result := make(map[string]interface{}, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

// Run executes script to completion. An exception the script does not catch
// is returned as an error; when it was raised by a binding the original Go
// error is kept in the chain. Cancelling ctx interrupts the script.
func (e *Engine) Run(ctx context.Context, name, script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ctx = ctx
	defer func() { e.ctx = context.Background() }()

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		e.runtime.Interrupt(ctx.Err())
		close(interrupted)
	})

	_, err := e.runtime.RunScript(name, script)
	if !stop() {
		<-interrupted
	}
	e.runtime.ClearInterrupt()
	if err != nil {
		return scriptError(name, err)
	}
	return nil
}

// RunFile reads and runs a script file.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("read script %s", path)).WithCause(err)
	}
	return e.Run(ctx, filepath.Base(path), string(data))
}

// Close interrupts any script still running. Safe to call multiple times.
func (e *Engine) Close() {
	e.runtime.Interrupt(errors.New("engine closed"))
}

func scriptError(name string, err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if cause := ex.Unwrap(); cause != nil {
			return fmt.Errorf("script %s: %w", name, cause)
		}
		return fmt.Errorf("script %s: uncaught %s", name, ex.Error())
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("script %s interrupted: %w", name, cause)
		}
	}
	return fmt.Errorf("script %s: %w", name, err)
}
