package ash

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxJSONDepth bounds recursion depth during canonicalization, per spec §5's
// suggestion to cap JSON nesting (default 64) to prevent stack exhaustion.
const MaxJSONDepth = 64

// CanonicalizeJSON parses input as JSON and returns its deterministic
// canonical form: minified, object keys sorted by code-point order after
// NFC normalization, array order preserved, numbers rendered without
// scientific notation or trailing zeros, "-0" collapsed to "0". Duplicate
// object keys resolve last-value-wins, the natural consequence of decoding
// into a Go map (see DESIGN.md for the rationale).
//
// Byte-identical output across platforms and implementations is the
// load-bearing invariant of the whole protocol; this function intentionally
// does not delegate to a generic JSON-canonicalization library for the
// numeric formatting step, since none of the pack's candidates guarantee
// "never scientific notation" at extreme magnitudes.
func CanonicalizeJSON(input string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return "", newError(ErrCanonicalizationFailed, "invalid JSON: "+canonErrReason(err))
	}
	// Reject trailing garbage after the first JSON value.
	if _, err := dec.Token(); err != io.EOF {
		return "", newError(ErrCanonicalizationFailed, "trailing data after JSON value")
	}

	var sb strings.Builder
	if err := writeCanonicalValue(&sb, value, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// canonErrReason strips the underlying error down to a safe, non-payload
// string (an offset or category), never echoing the offending bytes.
func canonErrReason(err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("syntax error at offset %d", syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("unexpected type at offset %d", typeErr.Offset)
	}
	return "malformed input"
}

func writeCanonicalValue(sb *strings.Builder, v any, depth int) error {
	if depth > MaxJSONDepth {
		return newError(ErrCanonicalizationFailed, fmt.Sprintf("JSON nesting exceeds limit of %d", MaxJSONDepth))
	}
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
		return nil
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
		return nil
	case json.Number:
		return writeCanonicalNumber(sb, val)
	case string:
		return writeCanonicalString(sb, val)
	case []any:
		return writeCanonicalArray(sb, val, depth)
	case map[string]any:
		return writeCanonicalObject(sb, val, depth)
	default:
		return newError(ErrCanonicalizationFailed, fmt.Sprintf("unsupported JSON value type %T", v))
	}
}

func writeCanonicalArray(sb *strings.Builder, arr []any, depth int) error {
	sb.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			sb.WriteByte(',')
		}
		if err := writeCanonicalValue(sb, elem, depth+1); err != nil {
			return err
		}
	}
	sb.WriteByte(']')
	return nil
}

func writeCanonicalObject(sb *strings.Builder, obj map[string]any, depth int) error {
	// Go's JSON decoder already collapses byte-identical duplicate keys
	// (last value wins). Two keys that are only NFC-equivalent (distinct
	// byte sequences, same normalized form) are a second, rarer source of
	// collision; resolve it deterministically by processing original keys
	// in sorted order and letting later entries overwrite earlier ones
	// under their shared normalized key.
	origKeys := make([]string, 0, len(obj))
	for k := range obj {
		origKeys = append(origKeys, k)
	}
	sort.Strings(origKeys)

	normKeys := make([]string, 0, len(obj))
	values := make(map[string]any, len(obj))
	seen := make(map[string]bool, len(obj))
	for _, k := range origKeys {
		nk := norm.NFC.String(k)
		if !seen[nk] {
			seen[nk] = true
			normKeys = append(normKeys, nk)
		}
		values[nk] = obj[k]
	}
	sort.Strings(normKeys)

	sb.WriteByte('{')
	for i, nk := range normKeys {
		if i > 0 {
			sb.WriteByte(',')
		}
		if err := writeCanonicalString(sb, nk); err != nil {
			return err
		}
		sb.WriteByte(':')
		if err := writeCanonicalValue(sb, values[nk], depth+1); err != nil {
			return err
		}
	}
	sb.WriteByte('}')
	return nil
}

func writeCanonicalString(sb *strings.Builder, s string) error {
	normalized := norm.NFC.String(s)
	encoded, err := encodeJSONString(normalized)
	if err != nil {
		return newError(ErrCanonicalizationFailed, "failed to encode string")
	}
	sb.WriteString(encoded)
	return nil
}

// encodeJSONString produces a minimally-escaped, quoted JSON string with no
// HTML-safety escaping (no <-style mangling of < > &).
func encodeJSONString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	// Encoder.Encode appends a trailing newline.
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func writeCanonicalNumber(sb *strings.Builder, n json.Number) error {
	text := string(n)

	// A pure integer literal (no '.' or exponent) is already in minimal
	// form per JSON grammar; only "-0" needs folding to "0".
	if !strings.ContainsAny(text, ".eE") {
		if text == "-0" {
			sb.WriteByte('0')
			return nil
		}
		sb.WriteString(text)
		return nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return newError(ErrCanonicalizationFailed, "invalid number literal")
	}
	if math.IsNaN(f) {
		return newError(ErrCanonicalizationFailed, "NaN is not supported in canonical JSON")
	}
	if math.IsInf(f, 0) {
		return newError(ErrCanonicalizationFailed, "Infinity is not supported in canonical JSON")
	}
	if f == 0 {
		sb.WriteByte('0')
		return nil
	}

	formatted := strconv.FormatFloat(f, 'f', -1, 64)
	sb.WriteString(formatted)
	return nil
}
