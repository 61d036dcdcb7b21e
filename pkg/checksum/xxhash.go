package checksum

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the hex xxhash64 of data.
func Sum(data []byte) string {
	digest := xxhash.New()
	digest.Write(data)
	return hex.EncodeToString(digest.Sum(nil))
}

// ETag wraps the checksum of data as a strong HTTP entity tag.
func ETag(data []byte) string {
	return `"` + Sum(data) + `"`
}
