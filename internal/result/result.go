// Package result provides the Result type and sync error taxonomy shared
// by the sync engine, the remote backends, and the executor. No error
// crosses a backend boundary except as a *SyncError inside a Result.
package result

import "fmt"

// Result holds either a value or a *SyncError, never both.
// The zero value is an err Result with a nil error; construct with Ok or Err.
type Result[T any] struct {
	value T
	err   *SyncError
	ok    bool
}

// Ok returns a successful Result wrapping value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Err returns a failed Result wrapping err.
func Err[T any](err *SyncError) Result[T] {
	return Result[T]{err: err}
}

// IsOk reports whether the Result holds a value.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr reports whether the Result holds an error.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value, panicking if the Result is an error.
func (r Result[T]) Unwrap() T {
	if !r.ok {
		panic(fmt.Sprintf("result: Unwrap on err result: %v", r.err))
	}
	return r.value
}

// UnwrapErr returns the error, panicking if the Result is a value.
func (r Result[T]) UnwrapErr() *SyncError {
	if r.ok {
		panic("result: UnwrapErr on ok result")
	}
	return r.err
}

// UnwrapOr returns the value, or fallback if the Result is an error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.value
}

// UnwrapOrElse returns the value, or fn(err) if the Result is an error.
func (r Result[T]) UnwrapOrElse(fn func(*SyncError) T) T {
	if !r.ok {
		return fn(r.err)
	}
	return r.value
}

// Get returns (value, err) in the conventional Go shape. err is nil on ok.
func (r Result[T]) Get() (T, *SyncError) {
	return r.value, r.err
}

// MapErr transforms the error of a failed Result, passing values through.
func (r Result[T]) MapErr(fn func(*SyncError) *SyncError) Result[T] {
	if r.ok {
		return r
	}
	return Err[T](fn(r.err))
}

// OrElse recovers from a failed Result by calling fn, passing values through.
func (r Result[T]) OrElse(fn func(*SyncError) Result[T]) Result[T] {
	if r.ok {
		return r
	}
	return fn(r.err)
}

// Map transforms the value of a successful Result, passing errors through.
// Package-level because methods cannot introduce type parameters.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.IsErr() {
		return Err[U](r.err)
	}
	return Ok(fn(r.value))
}

// AndThen chains a fallible computation off a successful Result.
func AndThen[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.IsErr() {
		return Err[U](r.err)
	}
	return fn(r.value)
}

// Collect converts a slice of Results into a Result of a slice,
// short-circuiting on the first error.
func Collect[T any](results []Result[T]) Result[[]T] {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.IsErr() {
			return Err[[]T](r.err)
		}
		values = append(values, r.value)
	}
	return Ok(values)
}

// Partition splits a slice of Results into values and errors.
func Partition[T any](results []Result[T]) ([]T, []*SyncError) {
	var values []T
	var errs []*SyncError
	for _, r := range results {
		if r.ok {
			values = append(values, r.value)
		} else {
			errs = append(errs, r.err)
		}
	}
	return values, errs
}

// AllOk reports whether every Result in the slice is a value.
func AllOk[T any](results []Result[T]) bool {
	for _, r := range results {
		if r.IsErr() {
			return false
		}
	}
	return true
}

// AnyErr reports whether at least one Result in the slice is an error.
func AnyErr[T any](results []Result[T]) bool {
	return !AllOk(results)
}

// FirstErr returns the first error in the slice, or nil if none.
func FirstErr[T any](results []Result[T]) *SyncError {
	for _, r := range results {
		if r.IsErr() {
			return r.err
		}
	}
	return nil
}
