package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the scope a binding view was taken from.
type Context struct {
	Scope string // label identifier of the leaf frame, e.g. "function:main"
	Depth int    // number of frames in the chain
}

// PreHook lets callers rename or normalise bindings before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default JSON decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts flat binding views into typed values.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	configure []func(*json.Decoder)
	custom    CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(dec *json.Decoder) {
		dec.UseNumber()
	})
}

// WithDisallowUnknownFields rejects bindings that have no matching field.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(dec *json.Decoder) {
		dec.DisallowUnknownFields()
	})
}

// WithDecoderConfig allows callers to configure the json.Decoder directly.
func WithDecoderConfig[T any](configure func(*json.Decoder)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.configure = append(d.configure, configure)
		}
	}
}

// WithCustomDecoder replaces the default JSON decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// NewDecoder builds a Decoder from opts; nil options are ignored.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts bindings into T. Hooks operate on a copy, so the caller's
// map and any values it shares with a scope chain are never modified.
func (d *Decoder[T]) Decode(ctx Context, bindings map[string]any) (T, error) {
	var zero T

	if bindings == nil {
		return zero, fmt.Errorf("hydrate: bindings are nil for scope %q", ctx.Scope)
	}

	current, err := cloneBindings(bindings)
	if err != nil {
		return zero, fmt.Errorf("hydrate: copy bindings for scope %q: %w", ctx.Scope, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for scope %q failed: %w", ctx.Scope, err)
		}
		if next != nil {
			current = next
		}
	}

	result, err := d.decode(ctx, current)
	if err != nil {
		return zero, err
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for scope %q failed: %w", ctx.Scope, err)
		}
	}
	return result, nil
}

func (d *Decoder[T]) decode(ctx Context, bindings map[string]any) (T, error) {
	var result T
	if d.custom != nil {
		result, err := d.custom(ctx, bindings)
		if err != nil {
			return result, fmt.Errorf("hydrate: custom decoder for scope %q failed: %w", ctx.Scope, err)
		}
		return result, nil
	}

	buffer, err := json.Marshal(bindings)
	if err != nil {
		return result, fmt.Errorf("hydrate: marshal bindings for scope %q: %w", ctx.Scope, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configure {
		configure(decoder)
	}
	if err := decoder.Decode(&result); err != nil {
		return result, fmt.Errorf("hydrate: decode scope %q: %w", ctx.Scope, err)
	}
	return result, nil
}

func cloneBindings(bindings map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(bindings)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
