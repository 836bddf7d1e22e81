package redux

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const deepLimit = 64

// Identity fingerprints v by reference: maps, slices and pointers contribute
// their address and length, scalars their value. Two values share an identity
// when one is an unmodified copy of the other.
func Identity(v any) uint64 {
	return fingerprint(v, 0)
}

// Changed reports whether next is a different value than prev by identity.
// It is the default change test used by the enhancers.
func Changed(prev, next any) bool {
	return Identity(prev) != Identity(next)
}

// ShallowDigest fingerprints the entries of the top-level maps, slices and
// pointers of v, each entry by identity.
func ShallowDigest(v any) uint64 {
	return fingerprint(v, 1)
}

// DeepDigest fingerprints the contents of v, ignoring where they live.
func DeepDigest(v any) uint64 {
	return fingerprint(v, deepLimit)
}

func fingerprint(v any, depth int) uint64 {
	d := xxhash.New()
	writeValue(d, reflect.ValueOf(v), depth)
	return d.Sum64()
}

func writeValue(d *xxhash.Digest, v reflect.Value, depth int) {
	if !v.IsValid() {
		_, _ = d.WriteString("<nil>")
		return
	}
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			_, _ = d.WriteString("t")
		} else {
			_, _ = d.WriteString("f")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		_, _ = d.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		_, _ = d.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		_, _ = d.WriteString(strconv.FormatUint(math.Float64bits(v.Float()), 16))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		_, _ = d.WriteString(strconv.FormatUint(math.Float64bits(real(c)), 16))
		_, _ = d.WriteString(strconv.FormatUint(math.Float64bits(imag(c)), 16))
	case reflect.String:
		_, _ = d.WriteString(strconv.Quote(v.String()))
	case reflect.Interface:
		if v.IsNil() {
			_, _ = d.WriteString("<nil>")
			return
		}
		_, _ = d.WriteString(v.Elem().Type().String())
		writeValue(d, v.Elem(), depth)
	case reflect.Struct:
		_, _ = d.WriteString("{")
		for i := 0; i < v.NumField(); i++ {
			writeValue(d, v.Field(i), depth)
			_, _ = d.WriteString(",")
		}
		_, _ = d.WriteString("}")
	case reflect.Array:
		_, _ = d.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			writeValue(d, v.Index(i), depth)
			_, _ = d.WriteString(",")
		}
		_, _ = d.WriteString("]")
	case reflect.Map:
		if depth <= 0 || v.IsNil() {
			writeRef(d, v)
			return
		}
		type entry struct {
			key string
			val reflect.Value
		}
		entries := make([]entry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			entries = append(entries, entry{key: keyString(iter.Key()), val: iter.Value()})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		for _, e := range entries {
			_, _ = d.WriteString(e.key)
			_, _ = d.WriteString(":")
			writeValue(d, e.val, depth-1)
			_, _ = d.WriteString(";")
		}
	case reflect.Slice:
		if depth <= 0 || v.IsNil() {
			writeRef(d, v)
			return
		}
		for i := 0; i < v.Len(); i++ {
			writeValue(d, v.Index(i), depth-1)
			_, _ = d.WriteString(",")
		}
	case reflect.Pointer:
		if depth <= 0 || v.IsNil() {
			writeRef(d, v)
			return
		}
		writeValue(d, v.Elem(), depth-1)
	default:
		// chan, func, unsafe pointer
		writeRef(d, v)
	}
}

func writeRef(d *xxhash.Digest, v reflect.Value) {
	_, _ = d.WriteString("@")
	_, _ = d.WriteString(strconv.FormatUint(uint64(v.Pointer()), 16))
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Chan:
		_, _ = d.WriteString("#")
		_, _ = d.WriteString(strconv.Itoa(v.Len()))
	}
}

func keyString(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	case reflect.Bool:
		return strconv.FormatBool(k.Bool())
	default:
		return fmt.Sprint(k)
	}
}
