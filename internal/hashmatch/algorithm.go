package hashmatch

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// DefaultAlgorithm is the 160-bit digest used by the card database dumps.
const DefaultAlgorithm = "sha1"

// Algorithm names a digest and knows how to build a fresh hash state for it.
type Algorithm struct {
	Name string
	Size int // digest length in bytes
	New  func() hash.Hash
}

var algorithms = map[string]Algorithm{
	"md5":         {Name: "md5", Size: md5.Size, New: md5.New},
	"sha1":        {Name: "sha1", Size: sha1.Size, New: sha1.New},
	"sha224":      {Name: "sha224", Size: sha256.Size224, New: sha256.New224},
	"sha256":      {Name: "sha256", Size: sha256.Size, New: sha256.New},
	"sha384":      {Name: "sha384", Size: sha512.Size384, New: sha512.New384},
	"sha512":      {Name: "sha512", Size: sha512.Size, New: sha512.New},
	"sha3-256":    {Name: "sha3-256", Size: 32, New: sha3.New256},
	"sha3-512":    {Name: "sha3-512", Size: 64, New: sha3.New512},
	"blake2b-256": {Name: "blake2b-256", Size: blake2b.Size256, New: newBlake2b256},
}

// blake2b.New256 takes a key; unkeyed construction cannot fail.
func newBlake2b256() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	return h
}

// Lookup resolves an algorithm by case-insensitive name. Empty selects DefaultAlgorithm.
func Lookup(name string) (Algorithm, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultAlgorithm
	}
	alg, ok := algorithms[key]
	if !ok {
		return Algorithm{}, types.InvalidSpecf("unknown digest algorithm %q (supported: %s)",
			name, strings.Join(Names(), ", "))
	}
	return alg, nil
}

// Names lists the supported algorithm names in sorted order.
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
