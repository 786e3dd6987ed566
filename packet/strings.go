package packet

// NameLength is the fixed on-wire length of display-name fields. Shorter
// names are zero-padded, longer names are truncated.
const NameLength = 32

// PutFixedString writes str into dst zero-padded or truncated to len(dst).
//
// Parameters:
//   - dst: Destination slice defining the fixed field length
//   - str: The string to encode
func PutFixedString(dst []byte, str string) {
	for i := range dst {
		dst[i] = 0
	}

	copy(dst, str)
}

// FixedString decodes a zero-padded fixed-length string field, dropping
// trailing zero bytes.
//
// Parameters:
//   - b: The fixed-length field bytes
//
// Returns:
//   - The decoded string without padding
func FixedString(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}

	return string(b[:end])
}
