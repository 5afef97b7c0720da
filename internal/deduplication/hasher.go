package deduplication

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hasher handles message hashing logic
type Hasher struct {
	algorithm string
}

// NewHasher creates a new hasher instance
func NewHasher(algorithm string) *Hasher {
	return &Hasher{algorithm: strings.ToLower(algorithm)}
}

// ComputeHash hashes the values of fields in order. Absent fields hash as
// empty strings so the field position still counts.
func (h *Hasher) ComputeHash(values map[string]string, fields []string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("no fields specified for hashing")
	}

	var builder strings.Builder
	for _, field := range fields {
		builder.WriteString(values[field])
		builder.WriteByte('|')
	}

	input := []byte(builder.String())

	switch h.algorithm {
	case "sha256":
		sum := sha256.Sum256(input)
		return hex.EncodeToString(sum[:]), nil
	case "sha1":
		sum := sha1.Sum(input)
		return hex.EncodeToString(sum[:]), nil
	default:
		sum := md5.Sum(input)
		return hex.EncodeToString(sum[:]), nil
	}
}
