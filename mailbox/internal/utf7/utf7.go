// Package utf7 implements the modified UTF-7 encoding used for
// international mailbox names (RFC 3501 section 5.1.3).
package utf7

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrBadUTF7 reports a malformed modified UTF-7 sequence.
var ErrBadUTF7 = errors.New("utf7: invalid modified UTF-7")

// Modified base64: standard alphabet with ',' instead of '/', no padding.
var b64 = base64.NewEncoding(
	"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,").
	WithPadding(base64.NoPadding)

type enc struct{}

// Encoding converts between UTF-8 and modified UTF-7.
var Encoding encoding.Encoding = enc{}

func (enc) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &decoder{}}
}

func (enc) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &encoder{}}
}

// decoder transforms modified UTF-7 to UTF-8. It works on the whole input
// at once; incomplete input is reported as ErrShortSrc until atEOF.
type decoder struct{}

func (d *decoder) Reset() {}

func (d *decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if !atEOF {
		return 0, 0, transform.ErrShortSrc
	}
	out, err := decode(string(src))
	if err != nil {
		return 0, 0, err
	}
	if len(out) > len(dst) {
		return 0, 0, transform.ErrShortDst
	}
	return copy(dst, out), len(src), nil
}

// encoder transforms UTF-8 to modified UTF-7.
type encoder struct{}

func (e *encoder) Reset() {}

func (e *encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if !atEOF {
		return 0, 0, transform.ErrShortSrc
	}
	out := encode(string(src))
	if len(out) > len(dst) {
		return 0, 0, transform.ErrShortDst
	}
	return copy(dst, out), len(src), nil
}

// Encode converts a UTF-8 mailbox name to modified UTF-7.
func Encode(name string) string {
	return encode(name)
}

// Decode converts a modified UTF-7 mailbox name to UTF-8.
func Decode(name string) (string, error) {
	return decode(name)
}

func encode(s string) string {
	var sb strings.Builder
	var run []rune

	flush := func() {
		if len(run) == 0 {
			return
		}
		u16 := utf16.Encode(run)
		raw := make([]byte, 0, len(u16)*2)
		for _, u := range u16 {
			raw = append(raw, byte(u>>8), byte(u))
		}
		sb.WriteByte('&')
		sb.WriteString(b64.EncodeToString(raw))
		sb.WriteByte('-')
		run = run[:0]
	}

	for _, r := range s {
		switch {
		case r == '&':
			flush()
			sb.WriteString("&-")
		case r >= 0x20 && r <= 0x7e:
			flush()
			sb.WriteRune(r)
		default:
			run = append(run, r)
		}
	}
	flush()
	return sb.String()
}

func decode(s string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if c != '&' {
			if c < 0x20 || c > 0x7e {
				return "", ErrBadUTF7
			}
			sb.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(s[i+1:], '-')
		if end < 0 {
			return "", ErrBadUTF7
		}
		chunk := s[i+1 : i+1+end]
		i += end + 2

		if chunk == "" {
			// "&-" is a literal ampersand.
			sb.WriteByte('&')
			continue
		}

		raw, err := b64.DecodeString(chunk)
		if err != nil || len(raw)%2 != 0 {
			return "", ErrBadUTF7
		}
		u16 := make([]uint16, len(raw)/2)
		for j := range u16 {
			u16[j] = uint16(raw[2*j])<<8 | uint16(raw[2*j+1])
		}
		for _, r := range utf16.Decode(u16) {
			if r == utf8.RuneError {
				return "", ErrBadUTF7
			}
			// Shifted ASCII must be encoded directly.
			if r >= 0x20 && r <= 0x7e {
				return "", ErrBadUTF7
			}
			sb.WriteRune(r)
		}
	}
	return sb.String(), nil
}
