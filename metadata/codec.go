// Package metadata produces the encrypted device fingerprint blob the
// sign-in challenge expects in its metadata1 form field.
package metadata

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"hash/crc32"
	"strings"
)

// blobPrefix tags every encrypted blob; the endpoint rejects blobs
// without it.
const blobPrefix = "ECdITeCs:"

// DefaultKey is the fixed 128-bit key shared with the challenge endpoint.
var DefaultKey = []byte{
	0x61, 0x03, 0x8f, 0x70, 0x34, 0x18, 0x97, 0x99,
	0x3a, 0xeb, 0xe7, 0x8b, 0x85, 0x97, 0x24, 0x34,
}

// ErrCipher indicates a protocol mismatch in the metadata codec: a bad key,
// a malformed blob, or a checksum failure. It is never safe to ignore.
type ErrCipher struct {
	Err error
}

func (e ErrCipher) Error() string {
	return fmt.Errorf("cipher: %w", e.Err).Error()
}

func (e ErrCipher) Unwrap() error {
	return e.Err
}

// Codec encrypts and decrypts fingerprint blobs with an explicit key.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	key [4]uint32
}

// NewCodec builds a codec from a 128-bit key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != 16 {
		return nil, ErrCipher{Err: fmt.Errorf("key must be 16 bytes, got %d", len(key))}
	}
	var c Codec
	for i := range c.key {
		c.key[i] = uint32(key[i*4]) | uint32(key[i*4+1])<<8 |
			uint32(key[i*4+2])<<16 | uint32(key[i*4+3])<<24
	}
	return &c, nil
}

// Encrypt produces the wire blob for a plaintext: an 8-hex-digit CRC32
// checksum is prepended as "checksum#plaintext", the composite is encrypted
// and base64-encoded, and the result carries the fixed prefix. The plaintext
// must not end in NUL bytes; the cipher's zero padding would swallow them.
func (c *Codec) Encrypt(plaintext string) string {
	composite := checksumHex(plaintext) + "#" + plaintext
	words := bytesToWords([]byte(composite))
	xxteaEncode(words, c.key)
	return blobPrefix + base64.StdEncoding.EncodeToString(wordsToBytes(words))
}

// Decrypt inverts Encrypt and verifies the embedded checksum.
func (c *Codec) Decrypt(blob string) (string, error) {
	encoded, ok := strings.CutPrefix(blob, blobPrefix)
	if !ok {
		return "", ErrCipher{Err: fmt.Errorf("blob is missing the %q prefix", blobPrefix)}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCipher{Err: fmt.Errorf("decode blob: %w", err)}
	}
	words := bytesToWords(ciphertext)
	xxteaDecode(words, c.key)
	composite := bytes.TrimRight(wordsToBytes(words), "\x00")

	checksum, plaintext, found := strings.Cut(string(composite), "#")
	if !found || len(checksum) != 8 {
		return "", ErrCipher{Err: fmt.Errorf("decrypted blob has no checksum header")}
	}
	if checksumHex(plaintext) != checksum {
		return "", ErrCipher{Err: fmt.Errorf("checksum mismatch, blob corrupted or wrong key")}
	}
	return plaintext, nil
}

// checksumHex is the CRC32 of the UTF-8 bytes, uppercase hex, left-padded
// to eight digits.
func checksumHex(s string) string {
	return fmt.Sprintf("%08X", crc32.ChecksumIEEE([]byte(s)))
}
