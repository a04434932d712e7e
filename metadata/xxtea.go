package metadata

// The corrected block TEA cipher ("XXTEA") over little-endian 32-bit words.
// The sign-in endpoint decrypts the metadata1 field with exactly this
// variant, so the word layout, round count, and mixing function must not
// change.

const xxteaDelta uint32 = 0x9E3779B9

func xxteaMix(y, z, sum, keyWord uint32) uint32 {
	return (((z >> 5) ^ (y << 2)) + ((y >> 3) ^ (z << 4))) ^ ((sum ^ y) + (keyWord ^ z))
}

// xxteaEncode encrypts v in place. Blocks shorter than two words are left
// untouched, the algorithm is defined as the identity for them.
func xxteaEncode(v []uint32, k [4]uint32) {
	n := len(v)
	if n < 2 {
		return
	}
	var sum uint32
	z := v[n-1]
	for q := 6 + 52/n; q > 0; q-- {
		sum += xxteaDelta
		e := (sum >> 2) & 3
		var y uint32
		for p := 0; p < n-1; p++ {
			y = v[p+1]
			v[p] += xxteaMix(y, z, sum, k[(uint32(p)&3)^e])
			z = v[p]
		}
		y = v[0]
		v[n-1] += xxteaMix(y, z, sum, k[(uint32(n-1)&3)^e])
		z = v[n-1]
	}
}

// xxteaDecode decrypts v in place, inverting xxteaEncode.
func xxteaDecode(v []uint32, k [4]uint32) {
	n := len(v)
	if n < 2 {
		return
	}
	sum := uint32(6+52/n) * xxteaDelta
	y := v[0]
	for sum != 0 {
		e := (sum >> 2) & 3
		var z uint32
		for p := n - 1; p > 0; p-- {
			z = v[p-1]
			v[p] -= xxteaMix(y, z, sum, k[(uint32(p)&3)^e])
			y = v[p]
		}
		z = v[n-1]
		v[0] -= xxteaMix(y, z, sum, k[e])
		y = v[0]
		sum -= xxteaDelta
	}
}

// bytesToWords packs bytes into little-endian 32-bit words, zero-padding
// the final partial word.
func bytesToWords(data []byte) []uint32 {
	words := make([]uint32, (len(data)+3)/4)
	for i, b := range data {
		words[i/4] |= uint32(b) << (8 * uint(i%4))
	}
	return words
}

// wordsToBytes is the inverse of bytesToWords, including the padding bytes.
func wordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		out[i*4] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}
