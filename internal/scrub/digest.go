package scrub

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/pkg/errors"
)

// ResolveDigest resolves a configured content-digest algorithm name to its
// constructor, failing fast on unknown names. The supported set mirrors
// Go's registered crypto hashes.
func ResolveDigest(name string) (func() hash.Hash, error) {
	switch name {
	case "sha256":
		return sha256.New, nil
	case "sha1":
		return sha1.New, nil
	case "sha512":
		return sha512.New, nil
	case "md5":
		return md5.New, nil
	default:
		return nil, errors.Errorf("unknown digest algorithm: %q", name)
	}
}
