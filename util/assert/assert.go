// Package assert checks internal invariants.
// A failed assertion is a programming error, so every function here panics instead of returning an error.
package assert

import (
	"fmt"
	"reflect"
)

// Assert panics if condition is false.
// The optional msgAndArgs are formatted with fmt.Sprintf, the first element being the format string.
func Assert(condition bool, msgAndArgs ...any) {
	if condition {
		return
	}
	panic("assertion failed: " + format(msgAndArgs...))
}

// Assertf panics with a formatted message if condition is false.
func Assertf(condition bool, format string, args ...any) {
	if condition {
		return
	}
	panic("assertion failed: " + fmt.Sprintf(format, args...))
}

// IsNil panics if v is not nil.
// Typically used for errors that can't happen: assert.IsNil(err).
func IsNil(v any, msgAndArgs ...any) {
	if isNil(v) {
		return
	}
	panic(fmt.Sprintf("expected nil, got %v: %s", v, format(msgAndArgs...)))
}

// IsNotNil panics if v is nil.
func IsNotNil(v any, msgAndArgs ...any) {
	if !isNil(v) {
		return
	}
	panic("expected non-nil value: " + format(msgAndArgs...))
}

// Never panics unconditionally. Marks code that must be unreachable.
func Never(msgAndArgs ...any) {
	panic("unreachable code reached: " + format(msgAndArgs...))
}

// Neverf is Never with a formatted message.
func Neverf(format string, args ...any) {
	panic("unreachable code reached: " + fmt.Sprintf(format, args...))
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	}

	return false
}

func format(msgAndArgs ...any) string {
	if len(msgAndArgs) == 0 {
		return "(no message)"
	}

	msg, ok := msgAndArgs[0].(string)
	if !ok {
		return fmt.Sprintf("%v", msgAndArgs)
	}

	return fmt.Sprintf(msg, msgAndArgs[1:]...)
}
