// Package confb64 implements the base64 variant used to armor password
// hashes on printed one-time password lists.
//
// The alphabet avoids glyphs that are easily confused when printed and
// retyped (0 vs O, 1 vs l vs I). Encoding is one-way: stored hashes are
// never decoded. Instead, the verifier canonicalises the user's
// keystrokes with Canonical and re-encodes a freshly computed hash for
// comparison.
package confb64

// Alphabet is fixed by the on-disk file format and by the printed lists
// already in circulation; changing it invalidates both. It differs from
// MIME base64 in that l, 0 and 1 are replaced by %, : and =.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijk%mnopqrstuvwxyz:=23456789+/"

// Encode packs the first 6*chars bits of v into chars characters, three
// bytes to four characters, most significant bits first. It panics when
// v is too short to supply 6*chars bits.
func Encode(v []byte, chars int) string {
	if need := (6*chars + 7) / 8; len(v) < need {
		panic("confb64: input shorter than requested output")
	}
	s := make([]byte, chars)
	for i := 0; i < chars; i++ {
		j := (i / 4) * 3
		switch i % 4 {
		case 0:
			s[i] = Alphabet[v[j]>>2]
		case 1:
			s[i] = Alphabet[(v[j]<<4&0x30)|v[j+1]>>4]
		case 2:
			s[i] = Alphabet[(v[j+1]<<2&0x3c)|v[j+2]>>6]
		case 3:
			s[i] = Alphabet[v[j+2]&0x3f]
		}
	}
	return string(s)
}

// Canonical maps a typed byte into the alphabet, folding keystrokes
// whose printed glyphs are ambiguous onto the characters the encoder
// actually emits. The second return value is false for bytes that carry
// no password content (whitespace, control characters, punctuation
// outside the alphabet); the caller must skip those.
func Canonical(c byte) (byte, bool) {
	switch {
	case c == 'l' || c == '1' || c == '|':
		return 'I', true
	case c == '0':
		return 'O', true
	case c == '\\':
		return '/', true
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '2' && c <= '9',
		c == ':', c == '%', c == '=', c == '+', c == '/':
		return c, true
	}
	return 0, false
}
