package record

import (
	"context"
	"maps"

	"github.com/nspcc-dev/binrec/pkg/io"
)

// State carries the context of one load or dump operation. It exposes the
// values resolved so far, which is what lets later fields depend on earlier
// ones (length prefixes, tag-driven unions, conditional presence).
type State struct {
	ctx    context.Context
	schema *Schema
	values map[string]any
}

// NewState returns a State for standalone use of FieldSpec.Read and
// FieldSpec.Write outside of a whole-record operation. Engine entry points
// construct their own.
func NewState(ctx context.Context, s *Schema) *State {
	return &State{ctx: ctx, schema: s, values: make(map[string]any)}
}

// Context returns the operation context, never nil.
func (st *State) Context() context.Context {
	if st.ctx == nil {
		return context.Background()
	}
	return st.ctx
}

// Schema returns the schema the operation runs against. It is nil for
// standalone field operations started without one.
func (st *State) Schema() *Schema {
	return st.schema
}

// Value returns the resolved value of a sibling field. The boolean is false
// if the field has not been resolved yet, mind that the value itself can be
// the NotPresent sentinel or nil.
func (st *State) Value(name string) (any, bool) {
	v, ok := st.values[name]
	return v, ok
}

// Values returns a copy of everything resolved so far.
func (st *State) Values() map[string]any {
	return maps.Clone(st.values)
}

// put records a resolved value, making it visible to subsequent callbacks.
func (st *State) put(name string, v any) {
	st.values[name] = v
}

// Phase selects when a validator runs.
type Phase byte

const (
	// PostLoad validators run after decoding.
	PostLoad Phase = 1 << iota
	// PreDump validators run before encoding, after value resolution.
	PreDump
)

// has reports whether p includes q.
func (p Phase) has(q Phase) bool {
	return p&q != 0
}

// PresenceFunc decides whether an optional field takes part in the byte
// stream at all. It sees previously resolved sibling values through st.
type PresenceFunc func(st *State) bool

// ComputeFunc produces the value of a computed field at dump time from the
// values resolved so far. When a needed sibling is not resolved yet, return
// ErrMissingRequiredValue: strict dumps report it, best-effort flattening
// retries the field once the remaining siblings are in.
type ComputeFunc func(st *State) (any, error)

// SizeFunc resolves a dynamic byte size from sibling values.
type SizeFunc func(st *State) (int, error)

// HaltFunc is consulted before each element read of a predicate-terminated
// array. elems holds the elements decoded so far and may be modified, for
// example to drop a terminator that was read as a regular element.
type HaltFunc func(st *State, r *io.BinReader, elems *[]any) (bool, error)

// LoadDecider picks the union candidate for decoding. It may inspect the
// stream through r.Peek without consuming and returns the candidate index.
type LoadDecider func(r *io.BinReader, st *State) (int, error)

// DumpDecider picks the union candidate for encoding the given value.
type DumpDecider func(v any, st *State) (int, error)

// FieldValidator checks a single resolved value.
type FieldValidator func(st *State, v any) error

// RecordValidator checks a fully resolved record through st.
type RecordValidator func(st *State) error
