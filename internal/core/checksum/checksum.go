// Package checksum fingerprints the package files so history records can
// tell whether the files changed after a pass.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Ning0612/pkgyaml/internal/adapter"
	"github.com/Ning0612/pkgyaml/internal/domain"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	// XXH64 is fast and non-cryptographic, suitable for change detection
	XXH64 Algorithm = "xxh64"
	// SHA256 for fingerprints that leave the machine
	SHA256 Algorithm = "sha256"
)

// Default is the algorithm history records use
const Default = XXH64

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	switch algo {
	case XXH64, SHA256:
		return true
	default:
		return false
	}
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case XXH64:
		return xxhash.New(), nil
	case SHA256:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("unsupported algorithm: %s", algo)
}

// Calculate streams reader through algo and returns "algo:hex"
func Calculate(reader io.Reader, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, reader); err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	return string(algo) + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// Sum is Calculate over an in-memory buffer
func Sum(data []byte, algo Algorithm) (string, error) {
	return Calculate(strings.NewReader(string(data)), algo)
}

// Fingerprint pairs the sums of both package files; an empty sum means
// the file did not exist
type Fingerprint struct {
	JSON string
	YAML string
}

// Files fingerprints jsonName and yamlName through fs
func Files(fs adapter.Adapter, jsonName, yamlName string, algo Algorithm) (Fingerprint, error) {
	var fp Fingerprint
	var err error
	if fp.JSON, err = file(fs, jsonName, algo); err != nil {
		return Fingerprint{}, err
	}
	if fp.YAML, err = file(fs, yamlName, algo); err != nil {
		return Fingerprint{}, err
	}
	return fp, nil
}

func file(fs adapter.Adapter, name string, algo Algorithm) (string, error) {
	data, err := fs.ReadFile(name)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", name, err)
	}
	return Sum(data, algo)
}

// Short returns the first n hex digits of sum without the algorithm prefix
func Short(sum string, n int) string {
	if i := strings.IndexByte(sum, ':'); i >= 0 {
		sum = sum[i+1:]
	}
	if len(sum) > n {
		return sum[:n]
	}
	return sum
}
