package record

import (
	"fmt"

	"github.com/nspcc-dev/binrec/pkg/io"
	"github.com/twmb/murmur3"
)

// fingerprintSeed pins the hash so fingerprints stay comparable across
// processes and releases of the same canonical format.
const fingerprintSeed uint64 = 0x62696e7265633156 // "binrec1V"

// fingerprintSchema hashes the wire-relevant parts of a schema: field
// order, kinds, widths, size and count policies, null patterns and
// constants. Callbacks and validators shape values, not layout, and stay
// out.
func fingerprintSchema(s *Schema) uint64 {
	w := io.NewBufBinWriter()
	printStr(w.BinWriter, s.name)
	w.WriteU32LE(uint32(len(s.fields)))
	for _, f := range s.fields {
		printField(w.BinWriter, f)
	}
	return murmur3.SeedSum64(fingerprintSeed, w.Bytes())
}

func printField(w *io.BinWriter, f *FieldSpec) {
	printStr(w, f.name)
	w.WriteB(byte(f.kind))
	w.WriteU32LE(uint32(f.width))
	printBool(w, f.signed)
	printBool(w, f.bigEnd)
	w.WriteB(byte(f.scheme))
	w.WriteB(byte(f.unit))
	w.WriteU32LE(uint32(f.maxBytes))
	w.WriteB(byte(f.size.kind))
	switch f.size.kind {
	case sizeFixed:
		w.WriteU32LE(uint32(f.size.n))
	case sizeRef:
		printStr(w, f.size.ref)
	}
	w.WriteB(byte(f.nullKind))
	if f.nullKind == nullBytes {
		printBytes(w, f.nullValue)
	}
	printBool(w, f.hasConst)
	if f.hasConst {
		printStr(w, fmt.Sprintf("%v", f.constVal))
	}
	printBool(w, f.discard)
	printBool(w, f.presence != nil)
	if len(f.term) > 0 {
		printBytes(w, f.term)
	}
	switch f.kind {
	case kindArray:
		if f.count >= 0 {
			w.WriteU32LE(uint32(f.count))
		} else {
			printStr(w, f.countRef)
		}
		printField(w, f.elem)
	case kindUnion:
		w.WriteU32LE(uint32(len(f.choices)))
		for _, c := range f.choices {
			printField(w, c)
		}
	case kindNested:
		w.WriteU64LE(f.inner.fingerprint)
	}
}

func printStr(w *io.BinWriter, s string) {
	printBytes(w, []byte(s))
}

func printBytes(w *io.BinWriter, b []byte) {
	w.WriteU32LE(uint32(len(b)))
	w.WriteBytes(b)
}

func printBool(w *io.BinWriter, v bool) {
	if v {
		w.WriteB(1)
	} else {
		w.WriteB(0)
	}
}
