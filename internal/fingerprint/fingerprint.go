// Package fingerprint computes the 128-bit structural digest of a canonical
// node (§4.2). Grounded on opal-lang-opal/core/planfmt/plan.go's content-hash
// field (a Plan's integrity hash over its serialized form), generalized from
// a whole-plan hash to a per-node fingerprint keyed on the LIU node algebra's
// flattened structural text.
package fingerprint

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/metanucleus/metanucleus/internal/node"
)

// Size is the digest length in bytes (128 bits).
const Size = 16

// Digest is a 128-bit Blake2b fingerprint.
type Digest [Size]byte

// String renders the digest as 32 lowercase hex characters.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Flatten returns the canonical structural text fed to the digest
// ("kind|L=label|V=value|F[k:child;...]|A[child,...]"), exposed so callers
// building plan digests (§3.5) can hash the same flattening over composite
// text without round-tripping through a Node.
func Flatten(n *node.Node) string { return node.StructuralKey(n) }

// Of computes the fingerprint of n. The preimage is the same flattened
// structural text used by the arena's dedup key, so structurally identical
// canonical nodes always hash identically regardless of process or
// insertion order (§4.2 requirements).
func Of(n *node.Node) (Digest, error) {
	preimage := Flatten(n)
	sum, err := blake2b.New(Size, nil)
	if err != nil {
		return Digest{}, err
	}
	if _, err := sum.Write([]byte(preimage)); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], sum.Sum(nil))
	return d, nil
}

// MustOf computes the fingerprint of n, panicking on the (practically
// impossible) failure of the underlying hash construction.
func MustOf(n *node.Node) Digest {
	d, err := Of(n)
	if err != nil {
		panic(err)
	}
	return d
}
