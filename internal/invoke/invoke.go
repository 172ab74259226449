// Package invoke dispatches named operations with positional and keyword
// arguments to an arbitrary client value.
//
// A client that implements Caller handles dispatch itself. Any other value is
// wrapped in Methods, which resolves the operation name to an exported method
// by reflection. Both "ReceiveMessage" and "receive_message" resolve to the
// method ReceiveMessage.
package invoke

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"github.com/stoewer/go-strcase"

	errs "github.com/rafidka/sqsasync/internal/errors"
)

// Kwargs carries keyword arguments. Methods receive it as their trailing
// map[string]any parameter.
type Kwargs = map[string]any

// Caller performs a named operation.
type Caller interface {
	Call(ctx context.Context, operation string, args []any, kwargs Kwargs) (any, error)
}

// CallerFunc adapts a function to a Caller.
type CallerFunc func(ctx context.Context, operation string, args []any, kwargs Kwargs) (any, error)

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, operation string, args []any, kwargs Kwargs) (any, error) {
	return f(ctx, operation, args, kwargs)
}

// Wrap returns client itself when it already implements Caller and a
// reflection-based Methods adapter otherwise.
func Wrap(client any) Caller {
	if c, ok := client.(Caller); ok {
		return c
	}
	return NewMethods(client)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	kwargsType  = reflect.TypeOf(Kwargs(nil))
)

// Methods resolves operations to exported methods of a target value. It only
// reads the target and is safe for concurrent use; whether the target's
// methods are is up to the target.
type Methods struct {
	target   reflect.Value
	typeName string

	mu    sync.RWMutex
	cache map[string]reflect.Value
}

// NewMethods wraps target. A nil target resolves nothing.
func NewMethods(target any) *Methods {
	m := &Methods{
		target: reflect.ValueOf(target),
		cache:  make(map[string]reflect.Value),
	}
	if m.target.IsValid() {
		m.typeName = m.target.Type().String()
	}
	return m
}

// Resolve finds the method an operation name refers to.
func (m *Methods) Resolve(operation string) (reflect.Value, error) {
	m.mu.RLock()
	fn, ok := m.cache[operation]
	m.mu.RUnlock()
	if ok {
		return fn, nil
	}

	if m.target.IsValid() && operation != "" {
		for _, name := range candidates(operation) {
			fn = m.target.MethodByName(name)
			if fn.IsValid() {
				m.mu.Lock()
				m.cache[operation] = fn
				m.mu.Unlock()
				return fn, nil
			}
		}
	}
	return reflect.Value{}, &errs.ResolutionError{Operation: operation, Target: m.typeName}
}

// Call resolves operation and invokes it. A panic raised by the method is
// recovered and returned as an error.
func (m *Methods) Call(ctx context.Context, operation string, args []any, kwargs Kwargs) (value any, err error) {
	fn, err := m.Resolve(operation)
	if err != nil {
		return nil, err
	}
	in, err := bindArguments(ctx, fn.Type(), args, kwargs)
	if err != nil {
		return nil, errors.Wrapf(err, "bind %s", operation)
	}

	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = errors.Errorf("panic in %s: %v", operation, r)
		}
	}()
	return unpackResults(fn.Call(in))
}

func candidates(operation string) []string {
	camel := strcase.UpperCamelCase(operation)
	if camel == operation {
		return []string{operation}
	}
	return []string{operation, camel}
}

// bindArguments maps ctx, positional args and kwargs onto the parameters of
// ft: an optional leading context.Context, the positional parameters, and an
// optional trailing keyword map.
func bindArguments(ctx context.Context, ft reflect.Type, args []any, kwargs Kwargs) ([]reflect.Value, error) {
	numIn := ft.NumIn()
	first := 0
	var in []reflect.Value
	if numIn > 0 && ft.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		first = 1
	}

	last := numIn
	takesKwargs := false
	if !ft.IsVariadic() && numIn > first && isKwargsType(ft.In(numIn-1)) {
		takesKwargs = true
		last = numIn - 1
	}
	if !takesKwargs && len(kwargs) > 0 {
		return nil, fmt.Errorf("method takes no keyword arguments, got %d", len(kwargs))
	}

	fixed := last - first
	if ft.IsVariadic() {
		fixed--
	}
	if len(args) < fixed || (!ft.IsVariadic() && len(args) > fixed) {
		return nil, fmt.Errorf("method takes %d positional arguments, got %d", fixed, len(args))
	}

	for i, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= fixed {
			pt = ft.In(numIn - 1).Elem()
		} else {
			pt = ft.In(first + i)
		}
		v, err := argumentValue(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}

	if takesKwargs {
		kt := ft.In(numIn - 1)
		if kwargs == nil {
			kwargs = Kwargs{}
		}
		in = append(in, reflect.ValueOf(kwargs).Convert(kt))
	}
	return in, nil
}

func isKwargsType(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.ConvertibleTo(kwargsType) && kwargsType.ConvertibleTo(t)
}

func argumentValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// unpackResults accepts (T, error), (error), (T) and no results.
func unpackResults(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			return nil, asError(out[0])
		}
		return asValue(out[0]), nil
	default:
		last := out[len(out)-1]
		if last.Type() != errorType {
			return asValue(out[0]), nil
		}
		if err := asError(last); err != nil {
			return nil, err
		}
		return asValue(out[0]), nil
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func asValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
