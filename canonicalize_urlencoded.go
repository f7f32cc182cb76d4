package ash

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CanonicalizeURLEncoded normalizes an application/x-www-form-urlencoded
// payload: percent-decode, NFC-normalize keys and values, stable-sort pairs
// by key (duplicate keys keep their relative input order), then
// percent-re-encode with uppercase hex and a literal-preserving charset
// (spec §4.3).
func CanonicalizeURLEncoded(input string) (string, error) {
	if input == "" {
		return "", nil
	}

	type pair struct{ key, value string }
	var pairs []pair

	for _, segment := range strings.Split(input, "&") {
		if segment == "" {
			continue
		}
		key := segment
		value := ""
		if idx := strings.IndexByte(segment, '='); idx >= 0 {
			key = segment[:idx]
			value = segment[idx+1:]
		}

		decodedKey, err := percentDecode(key)
		if err != nil {
			return "", err
		}
		decodedValue, err := percentDecode(value)
		if err != nil {
			return "", err
		}

		pairs = append(pairs, pair{
			key:   norm.NFC.String(decodedKey),
			value: norm.NFC.String(decodedValue),
		})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, percentEncode(p.key)+"="+percentEncode(p.value))
	}
	return strings.Join(parts, "&"), nil
}

// percentDecode decodes percent-escapes and treats '+' as a literal space,
// matching application/x-www-form-urlencoded semantics.
func percentDecode(input string) (string, error) {
	bytesOut := make([]byte, 0, len(input))
	i := 0
	for i < len(input) {
		ch := input[i]
		switch ch {
		case '%':
			if i+2 >= len(input) {
				return "", newError(ErrCanonicalizationFailed, "malformed percent-escape")
			}
			hi, ok1 := hexDigit(input[i+1])
			lo, ok2 := hexDigit(input[i+2])
			if !ok1 || !ok2 {
				return "", newError(ErrCanonicalizationFailed, "malformed percent-escape hex")
			}
			bytesOut = append(bytesOut, byte(hi<<4|lo))
			i += 3
		case '+':
			bytesOut = append(bytesOut, ' ')
			i++
		default:
			bytesOut = append(bytesOut, ch)
			i++
		}
	}
	return string(bytesOut), nil
}

func hexDigit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	default:
		return 0, false
	}
}

const percentEncodeUnreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.~"

// percentEncode re-encodes a decoded string for URL form data: letters,
// digits, and -_.~ pass through; space becomes %20; everything else is
// percent-encoded per UTF-8 byte with uppercase hex.
func percentEncode(input string) string {
	var sb strings.Builder
	sb.Grow(len(input) * 3)

	for i := 0; i < len(input); i++ {
		b := input[i]
		switch {
		case strings.IndexByte(percentEncodeUnreserved, b) >= 0:
			sb.WriteByte(b)
		case b == ' ':
			sb.WriteString("%20")
		default:
			sb.WriteString(percentEncodeByte(b))
		}
	}
	return sb.String()
}

const hexUpper = "0123456789ABCDEF"

func percentEncodeByte(b byte) string {
	return "%" + string([]byte{hexUpper[b>>4], hexUpper[b&0x0F]})
}
