package utils

import (
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"
)

const (
	identityDomain = "mutual/identity/v1"
	pairDomain     = "mutual/pair/v1"
	// pairSeparator never appears in a normalized phone number.
	pairSeparator = "|"
)

// Hasher derives pseudonymous identity tokens and relationship keys from
// phone numbers. An optional pepper keys the digest so tokens cannot be
// recomputed from a phone number without the server secret.
type Hasher struct {
	key []byte
}

// NewHasher creates a Hasher. An empty pepper yields unkeyed BLAKE2b-256.
func NewHasher(pepper string) *Hasher {
	if pepper == "" {
		return &Hasher{}
	}
	key := []byte(pepper)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Hasher{key: key}
}

// Token returns the identity token of a phone number.
func (h *Hasher) Token(phone string) (string, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	return h.digest(identityDomain, normalized), nil
}

// PairKey returns the relationship key of two phone numbers.
// PairKey(a, b) == PairKey(b, a).
func (h *Hasher) PairKey(a, b string) (string, error) {
	na, err := NormalizePhone(a)
	if err != nil {
		return "", err
	}
	nb, err := NormalizePhone(b)
	if err != nil {
		return "", err
	}
	if na == nb {
		return "", &ValidationError{Field: "recipient_phone", Message: "Cannot send feedback about your own number"}
	}

	pair := []string{na, nb}
	sort.Strings(pair)
	return h.digest(pairDomain, pair[0]+pairSeparator+pair[1]), nil
}

func (h *Hasher) digest(domain, value string) string {
	d, err := blake2b.New256(h.key)
	if err != nil {
		// Only reachable with a key longer than 64 bytes, which NewHasher prevents.
		panic(err)
	}
	d.Write([]byte(domain))
	d.Write([]byte{0})
	d.Write([]byte(value))
	return hex.EncodeToString(d.Sum(nil))
}
