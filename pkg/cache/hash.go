package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashKey derives a cache key of the form "prefix:hash(parts...)". The
// parts are the inputs that make an entry unique, such as a source hash and
// a plan hash, or render options. Full SHA-256 keeps distinct skeletons from
// ever colliding on a key.
func hashKey(prefix string, parts ...interface{}) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(sum[:]))
}

// Hash computes the SHA-256 content hash of data as a 64-character hex
// string. It identifies BVH source text and plan files for cache keying.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
