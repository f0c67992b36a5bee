package record

// Sentinel is a marker distinguishable from any user value, including nil.
// Sentinels show up where real values would, in Record slots and in the
// resolved view passed to callbacks, so that absence of data never has to be
// conflated with a decoded null.
type Sentinel struct {
	kind byte
}

var (
	// Undefined marks a field that has no value at all. Dumping a record
	// with an Undefined slot and no fallback policy fails with
	// ErrMissingRequiredValue.
	Undefined = Sentinel{0}
	// NotPresent marks a field whose presence predicate reported false. It
	// contributes zero bytes to output and is skipped on input.
	NotPresent = Sentinel{1}
	// UseDefault requests the field's default policy explicitly, as if no
	// value had been assigned.
	UseDefault = Sentinel{2}
)

// String implements fmt.Stringer.
func (s Sentinel) String() string {
	switch s.kind {
	case 0:
		return "<undefined>"
	case 1:
		return "<not present>"
	case 2:
		return "<use default>"
	default:
		return "<unknown sentinel>"
	}
}

// isSentinel reports whether v is one of the package sentinels.
func isSentinel(v any) bool {
	_, ok := v.(Sentinel)
	return ok
}
