package vanity

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"strings"

	sha256simd "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

type HasherFactory func() hash.Hash

const DefaultHashFuncName = "sha256"

var hasherFactories = map[string]HasherFactory{
	"sha1":        sha1.New,
	"sha256":      sha256.New,
	"sha256-simd": sha256simd.New,
	"sha512":      sha512.New,
	"sha3-256":    sha3.New256,
	"keccak256":   sha3.NewLegacyKeccak256,
	"blake2b-256": newBlake2b256,
	"blake3":      func() hash.Hash { return blake3.New() },
}

func newBlake2b256() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only possible with a key longer than 64 bytes
		panic(err)
	}
	return h
}

// HasherFactoryByName returns the factory of the hash function with the
// given name (case insensitive), see HashFuncNames.
func HasherFactoryByName(name string) (HasherFactory, error) {
	name = strings.Trim(strings.ToLower(name), " ")
	factory, ok := hasherFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown/unsupported hash function: '%s' (supported: %s)",
			name, strings.Join(HashFuncNames(), ", "))
	}
	return factory, nil
}

// HashFuncNames returns the sorted list of supported hash function names.
func HashFuncNames() []string {
	names := make([]string, 0, len(hasherFactories))
	for name := range hasherFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
