package model

import (
	"bytes"
	"encoding/hex"
)

// InfoHash is the 20-byte SHA-1 digest identifying a torrent. Equality and
// ordering are lexicographic on the raw bytes.
type InfoHash [20]byte

// String renders the info-hash as lowercase hex.
func (h InfoHash) String() string {
	return hex.EncodeToString(h[:])
}

// Less reports whether h sorts before o, byte for byte.
func (h InfoHash) Less(o InfoHash) bool {
	return bytes.Compare(h[:], o[:]) < 0
}

// InfoHashFromHex decodes a 40-character hex string into an InfoHash.
func InfoHashFromHex(s string) (InfoHash, error) {
	var h InfoHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, errInfoHashLength
	}
	copy(h[:], b)
	return h, nil
}
