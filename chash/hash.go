// Package chash computes the canonical content hash used throughout the
// store and query engine (§4.1): a deterministic, order-independent
// (for object keys) token identifying a value structurally.
//
// The teacher (datalog/identity.go) hand-rolls SHA1 identities with a
// lazily-computed base85 string form. This module instead hashes with
// cespare/xxhash/v2 — a fast, non-cryptographic hash already present in
// the teacher's dependency graph (badger pulls it in transitively) —
// over a canonical byte encoding, per §9's explicit permission to pick
// "a fast, dependency-free [to implement] algorithm" rather than a
// cryptographic one.
package chash

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/RelationalFabric/relational-fabric-sub000/ref"
)

// Token is an opaque, comparable, content-addressed hash. It doubles as
// the stable sort key §4.7 requires for deterministic result ordering.
type Token uint64

func (t Token) String() string {
	return fmt.Sprintf("%016x", uint64(t))
}

func (t Token) Less(other Token) bool {
	return t < other
}

// tag bytes distinguish values that would otherwise collide in the
// byte stream (e.g. the string "1" vs the int64 1).
const (
	tagNil byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
	tagTime
	tagRefEntity
	tagRefTombstone
	tagRefRetract
	tagArray
	tagMap
	tagOpaque
)

// Hash computes the canonical token for v. It never fails for the
// value shapes this module stores (primitives, references, arrays,
// string-keyed maps, time.Time); anything else falls back to a
// %#v-formatted opaque encoding so the function stays total.
func Hash(v any) (Token, error) {
	h := xxhash.New()
	if err := writeValue(h, v); err != nil {
		return 0, err
	}
	return Token(h.Sum64()), nil
}

// MustHash panics on error; used where the value shape is already
// known-good (e.g. hashing a value the normalizer just produced).
func MustHash(v any) Token {
	t, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return t
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func writeValue(w byteWriter, v any) error {
	switch val := v.(type) {
	case nil:
		w.Write([]byte{tagNil})
	case bool:
		w.Write([]byte{tagBool, boolByte(val)})
	case int:
		writeInt(w, int64(val))
	case int32:
		writeInt(w, int64(val))
	case int64:
		writeInt(w, val)
	case uint64:
		writeInt(w, int64(val))
	case float32:
		writeFloat(w, float64(val))
	case float64:
		writeFloat(w, val)
	case string:
		writeString(w, val)
	case []byte:
		w.Write([]byte{tagBytes})
		writeLen(w, len(val))
		w.Write(val)
	case time.Time:
		w.Write([]byte{tagTime})
		writeInt(w, val.UnixNano())
	case ref.Ref:
		return writeRef(w, val)
	case []any:
		return writeArray(w, val)
	case map[string]any:
		return writeMap(w, val)
	default:
		// Internal/opaque values (regexes, pointers, custom structs)
		// pass through untouched per §9; hash their formatted identity
		// so equal opaque values still dedupe.
		w.Write([]byte{tagOpaque})
		writeString(w, fmt.Sprintf("%#v", val))
	}
	return nil
}

func writeRef(w byteWriter, r ref.Ref) error {
	switch r.Kind {
	case ref.KindEntity:
		w.Write([]byte{tagRefEntity})
	case ref.KindTombstone:
		w.Write([]byte{tagRefTombstone})
	case ref.KindRetract:
		w.Write([]byte{tagRefRetract})
	}
	writeString(w, r.ID)
	return nil
}

func writeArray(w byteWriter, arr []any) error {
	w.Write([]byte{tagArray})
	writeLen(w, len(arr))
	for _, el := range arr {
		if err := writeValue(w, el); err != nil {
			return err
		}
	}
	return nil
}

func writeMap(w byteWriter, m map[string]any) error {
	w.Write([]byte{tagMap})
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeLen(w, len(keys))
	for _, k := range keys {
		writeString(w, k)
		if err := writeValue(w, m[k]); err != nil {
			return err
		}
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writeInt(w byteWriter, i int64) {
	w.Write([]byte{tagInt})
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(i))
	w.Write(buf[:])
}

func writeFloat(w byteWriter, f float64) {
	w.Write([]byte{tagFloat})
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
	w.Write(buf[:])
}

func writeString(w byteWriter, s string) {
	w.Write([]byte{tagString})
	writeLen(w, len(s))
	w.Write([]byte(s))
}

func writeLen(w byteWriter, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	w.Write(buf[:])
}
