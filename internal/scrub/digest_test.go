package scrub

import "testing"

// TestResolveDigestKnownAlgorithms verifies that every supported digest
// name resolves to a constructor.
func TestResolveDigestKnownAlgorithms(t *testing.T) {
	for _, name := range []string{"sha256", "sha1", "sha512", "md5"} {
		ctor, err := ResolveDigest(name)
		if err != nil {
			t.Errorf("unexpected error resolving %q: %v", name, err)
			continue
		}
		if ctor == nil || ctor() == nil {
			t.Errorf("expected a usable hash.Hash constructor for %q", name)
		}
	}
}

// TestResolveDigestUnknownAlgorithm verifies that an unrecognized name
// fails fast rather than silently falling back to a default.
func TestResolveDigestUnknownAlgorithm(t *testing.T) {
	if _, err := ResolveDigest("crc32"); err == nil {
		t.Error("expected error for unsupported digest algorithm, got nil")
	}
}
