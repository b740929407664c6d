package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/agentic-research/pocket/internal/console"
)

// Local evaluates JavaScript in an embedded interpreter. The script body is
// wrapped in a function that receives a capturing console object, so a
// top-level return value becomes a result entry.
type Local struct {
	// Timeout bounds a single evaluation. Zero means no limit.
	Timeout time.Duration
	// MaxCallStack caps recursion depth. Zero keeps the interpreter default.
	MaxCallStack int
}

// NewLocal returns a Local with the given limits.
func NewLocal(timeout time.Duration, maxCallStack int) *Local {
	return &Local{Timeout: timeout, MaxCallStack: maxCallStack}
}

var consoleMethods = []struct {
	name   string
	kind   console.Kind
	prefix string
}{
	{"log", console.Log, ""},
	{"error", console.Error, "Error: "},
	{"warn", console.Warn, "Warning: "},
	{"info", console.Info, "Info: "},
}

func (l *Local) Run(ctx context.Context, code string, emit Emit) (res Result) {
	start := time.Now()
	var out []string
	record := func(kind console.Kind, prefix, text string) {
		emit(console.NewEntry(kind, text))
		out = append(out, prefix+text)
	}
	fail := func(msg string, err error) {
		record(console.Error, "Error: ", msg)
		res = Result{Error: msg, Err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Sprint(r), ErrRuntime)
		}
		res.Output = strings.Join(out, "\n")
		res.Duration = time.Since(start)
	}()

	vm := goja.New()
	if l.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(l.MaxCallStack)
	}

	cons := vm.NewObject()
	for _, m := range consoleMethods {
		_ = cons.Set(m.name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = formatValue(vm, a)
			}
			record(m.kind, m.prefix, strings.Join(parts, " "))
			return goja.Undefined()
		})
	}

	runCtx := ctx
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	stop := context.AfterFunc(runCtx, func() { vm.Interrupt(runCtx.Err()) })
	defer stop()

	wrapped, err := vm.RunString("(function(console) {\n" + code + "\n})")
	if err != nil {
		fail(l.classify(ctx, runCtx, start, vm, err))
		return res
	}
	fn, ok := goja.AssertFunction(wrapped)
	if !ok {
		fail("script did not compile to a function", ErrRuntime)
		return res
	}
	v, err := fn(goja.Undefined(), cons)
	if err != nil {
		fail(l.classify(ctx, runCtx, start, vm, err))
		return res
	}
	if v != nil && !goja.IsUndefined(v) {
		record(console.Result, "=> ", formatValue(vm, v))
	}
	return Result{Success: true}
}

// classify maps an interpreter error to the message shown to the user and
// its failure class. parent is the caller's context and runCtx the one
// bounded by l.Timeout.
func (l *Local) classify(parent, runCtx context.Context, start time.Time, vm *goja.Runtime, err error) (string, error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return expiredMessage(parent, l.Timeout, start), ErrTimeout
		}
		return "Execution canceled", ErrCanceled
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		class := ErrRuntime
		if obj, ok := exc.Value().(*goja.Object); ok {
			if name := obj.Get("name"); name != nil && name.String() == "SyntaxError" {
				class = ErrCompile
			}
		}
		return exceptionMessage(vm, exc.Value()), class
	}
	var compile *goja.CompilerSyntaxError
	if errors.As(err, &compile) {
		return compile.Error(), ErrCompile
	}
	return err.Error(), ErrRuntime
}

func exceptionMessage(vm *goja.Runtime, v goja.Value) string {
	if v == nil {
		return "unknown error"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return formatValue(vm, v)
}

// formatValue renders a value the way a browser console prints a single
// argument: strings verbatim, objects as indented JSON.
func formatValue(vm *goja.Runtime, v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		name := obj.Get("name")
		if name == nil || name.String() == "" {
			return "[Function (anonymous)]"
		}
		return "[Function: " + name.String() + "]"
	}
	if obj.ClassName() == "Error" {
		return v.String()
	}

	json := vm.Get("JSON").ToObject(vm)
	stringify, ok := goja.AssertFunction(json.Get("stringify"))
	if !ok {
		return v.String()
	}
	s, err := stringify(json, v, goja.Null(), vm.ToValue(2))
	if err != nil || s == nil || goja.IsUndefined(s) {
		return v.String()
	}
	return s.String()
}
