// Package identity implements the content-addressed 128-bit identity codec
// shared by every record kind in the substrate: a BLAKE3 digest, truncated
// to 16 bytes, over a namespaced byte prefix plus the entity's defining
// bytes.
package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Byte prefixes separating identity namespaces so no entity kind can ever
// collide with another, regardless of the bytes that follow.
const (
	PrefixAtom                byte = 0x41
	PrefixComposition         byte = 0x43
	PrefixPhysicality         byte = 0x50
	PrefixRelation            byte = 0x52
	PrefixCompositionSequence byte = 0x53
	PrefixRelationSequence    byte = 0x54
)

// Size is the byte length of every ID.
const Size = 16

// ID is a 128-bit content hash. The zero value is a valid, distinguishable
// "no identity" sentinel (IsZero reports it).
type ID [Size]byte

// New hashes prefix followed by parts, in order, truncating the BLAKE3
// digest to the first 16 bytes. It never allocates more than one
// intermediate digest buffer beyond the hasher's own state.
func New(prefix byte, parts ...[]byte) ID {
	h := blake3.New()
	h.Write([]byte{prefix})
	for _, p := range parts {
		h.Write(p)
	}
	var out ID
	sum := h.Sum(nil)
	copy(out[:], sum[:Size])
	return out
}

// Of hashes raw bytes with no prefix byte. Used when re-hashing an
// already-namespaced identity (e.g. evidence IDs, which hash two IDs
// together without their own prefix).
func Of(parts ...[]byte) ID {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out ID
	sum := h.Sum(nil)
	copy(out[:], sum[:Size])
	return out
}

// Bytes returns the raw 16 bytes of the identity.
func (id ID) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, id[:])
	return b
}

// Hex returns the 32-character lowercase hex encoding.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements fmt.Stringer as the hex encoding.
func (id ID) String() string {
	return id.Hex()
}

// UUID returns the canonical 8-4-4-4-12 grouping of the same 16 bytes, via
// google/uuid's formatter. No version/variant bits are mangled; the bytes
// are reproduced verbatim, so the result wears UUID clothing over a content
// hash rather than an RFC 4122 UUID.
func (id ID) UUID() string {
	// uuid.FromBytes only errors when len(b) != 16, which id[:] never is.
	u, _ := uuid.FromBytes(id[:])
	return u.String()
}

// IsZero reports whether id is the all-zero sentinel.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Less reports whether id sorts strictly before other under lexicographic
// byte-order comparison. Used to pick the "first" operand of a commutative
// pair (the relation identity invariant).
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Equal reports byte-wise equality.
func (id ID) Equal(other ID) bool {
	return id == other
}

// FromHex parses a 32-character lowercase (or uppercase) hex string back
// into an ID, rejecting malformed input.
func FromHex(s string) (ID, error) {
	if len(s) != Size*2 {
		return ID{}, fmt.Errorf("identity: hex string must be %d characters, got %d", Size*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("identity: decode hex: %w", err)
	}
	var out ID
	copy(out[:], b)
	return out, nil
}

// FromUUID parses a canonical 8-4-4-4-12 grouped string back into an ID via
// google/uuid's parser. No version/variant validation is performed beyond
// what the library itself enforces: these are content hashes, not RFC 4122
// UUIDs, wearing UUID clothing only for display purposes.
func FromUUID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("identity: parse uuid: %w", err)
	}
	var out ID
	copy(out[:], u[:])
	return out, nil
}

// HashCodepoint derives an Atom identity from a Unicode codepoint, per the
// Atom invariant: atom_id = H(0x41 || codepoint_LE_u32).
func HashCodepoint(cp rune) ID {
	var le [4]byte
	u := uint32(cp)
	le[0] = byte(u)
	le[1] = byte(u >> 8)
	le[2] = byte(u >> 16)
	le[3] = byte(u >> 24)
	return New(PrefixAtom, le[:])
}
