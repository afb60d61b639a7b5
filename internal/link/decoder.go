package link

import (
	"strings"
	"unicode/utf8"
)

const replacementMarker = "\uFFFD"

// Decoder turns chunks of serial bytes into UTF-8 text. Each run of invalid
// bytes becomes a single replacement marker, also when the run spans two
// chunks. A multi-byte sequence split across two chunks is held back until
// the rest arrives.
type Decoder struct {
	carry []byte
	// invalidTail is set when the last text returned ended on a marker for
	// invalid bytes.
	invalidTail bool
}

// Decode returns the text for p plus any bytes held from the previous call.
func (d *Decoder) Decode(p []byte) string {
	buf := p
	if len(d.carry) > 0 {
		buf = append(d.carry, p...)
		d.carry = nil
	}

	if cut := incompleteTail(buf); cut < len(buf) {
		d.carry = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}
	if len(buf) == 0 {
		return ""
	}

	text := strings.ToValidUTF8(string(buf), replacementMarker)
	if d.invalidTail && startsInvalid(buf) {
		// the run began in the previous chunk and is already marked
		text = strings.TrimPrefix(text, replacementMarker)
	}
	d.invalidTail = endsInvalid(buf)
	return text
}

// Flush returns whatever is held back, marking it invalid.
func (d *Decoder) Flush() string {
	if len(d.carry) == 0 {
		return ""
	}
	d.carry = nil
	if d.invalidTail {
		return ""
	}
	d.invalidTail = true
	return replacementMarker
}

func startsInvalid(buf []byte) bool {
	r, size := utf8.DecodeRune(buf)
	return r == utf8.RuneError && size == 1
}

func endsInvalid(buf []byte) bool {
	r, size := utf8.DecodeLastRune(buf)
	return r == utf8.RuneError && size == 1
}

// incompleteTail returns the index where a truncated trailing sequence
// starts, or len(buf) when the buffer ends on a rune boundary.
func incompleteTail(buf []byte) int {
	start := len(buf) - utf8.UTFMax + 1
	if start < 0 {
		start = 0
	}
	for i := len(buf) - 1; i >= start; i-- {
		if !utf8.RuneStart(buf[i]) {
			continue
		}
		if !utf8.FullRune(buf[i:]) {
			return i
		}
		break
	}
	return len(buf)
}
