// Package normalization maps loosely written configuration words onto typed values.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalize lowercases and trims s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Enum resolves spellings (including aliases) to canonical values of T.
type Enum[T comparable] struct {
	name   string
	values map[string]T
	keys   []string
}

// NewEnum builds an Enum named name. Keys of values are normalized, so
// "Deploy" and "deploy" are the same spelling.
func NewEnum[T comparable](name string, values map[string]T) *Enum[T] {
	e := &Enum[T]{name: name, values: make(map[string]T, len(values))}
	for k, v := range values {
		nk := Normalize(k)
		e.values[nk] = v
		e.keys = append(e.keys, nk)
	}
	sort.Strings(e.keys)
	return e
}

// Parse returns the value registered for s.
func (e *Enum[T]) Parse(s string) (T, error) {
	if v, ok := e.values[Normalize(s)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q (valid: %s)", e.name, s, strings.Join(e.keys, ", "))
}

// Lookup returns fallback when s is not a known spelling.
func (e *Enum[T]) Lookup(s string, fallback T) T {
	if v, ok := e.values[Normalize(s)]; ok {
		return v
	}
	return fallback
}

// Valid reports whether s is a known spelling.
func (e *Enum[T]) Valid(s string) bool {
	_, ok := e.values[Normalize(s)]
	return ok
}

// Keys returns the accepted spellings in sorted order.
func (e *Enum[T]) Keys() []string {
	return append([]string(nil), e.keys...)
}
