package util

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Md5ThenHex hex encodes an md5 sum
func Md5ThenHex(sum []byte) string {
	return hex.EncodeToString(sum)
}

// Content identifies a byte stream by its md5 sum, so the same file
// validated twice reports under the same id.
type Content struct {
	ID  string
	MD5 string
}

// HashContent reads r to the end through the hasher without buffering it.
func HashContent(r io.Reader) (Content, error) {
	hasher := md5.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return Content{}, fmt.Errorf("hashing content: %w", err)
	}
	hash := hasher.Sum(nil)
	id, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return Content{}, err
	}
	return Content{ID: id.String(), MD5: Md5ThenHex(hash)}, nil
}

// RunUUID names one fragmentation trial of the input at path.
func RunUUID(path string, seed int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d", path, seed)).String()
}
