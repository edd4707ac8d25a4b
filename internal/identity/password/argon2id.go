// Package password derives and verifies Argon2id password hashes. Hashing is
// deliberately CPU- and memory-expensive, so all calls route through a
// dedicated worker pool (see pool.go) instead of running inline on request
// goroutines.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	dErrors "identityd/pkg/domain-errors"
)

// argon2.Version is 0x13, rendered as 19 in PHC strings.
const phcVersion = 19

// Params are the Argon2id cost settings. They are embedded in every encoded
// hash, so Verify never needs them from configuration.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the OWASP-recommended interactive login settings.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2id hashes and verifies passwords with a fixed parameter set.
type Argon2id struct {
	params Params
}

func NewArgon2id(params Params) *Argon2id {
	return &Argon2id{params: params}
}

// hash derives a PHC-encoded hash with a fresh random salt:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>
func (a *Argon2id) hash(plaintext string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate salt")
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		salt,
		a.params.Iterations,
		a.params.MemoryKiB,
		a.params.Parallelism,
		a.params.KeyLength,
	)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion,
		a.params.MemoryKiB,
		a.params.Iterations,
		a.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// verify recomputes the key using the parameters and salt recovered from the
// encoded hash and compares in constant time. A malformed hash is a mismatch
// with an invalid-input code, never a panic.
func (a *Argon2id) verify(plaintext, encoded string) (bool, error) {
	params, salt, expected, err := decode(encoded)
	if err != nil {
		return false, err
	}

	// Refuse attacker-controlled hashes with pathological cost settings.
	if params.MemoryKiB > a.params.MemoryKiB*4 || params.Iterations > a.params.Iterations*4 {
		return false, dErrors.New(dErrors.CodeInvalidInput, "hash parameters out of bounds")
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	malformed := dErrors.New(dErrors.CodeInvalidInput, "malformed password hash")

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, malformed
	}
	if parts[2] != fmt.Sprintf("v=%d", phcVersion) {
		return Params{}, nil, nil, malformed
	}

	var params Params
	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.MemoryKiB, &params.Iterations, &parallelism); err != nil {
		return Params{}, nil, nil, malformed
	}
	if params.MemoryKiB == 0 || params.Iterations == 0 || parallelism == 0 || parallelism > 255 {
		return Params{}, nil, nil, malformed
	}
	params.Parallelism = uint8(parallelism)

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return Params{}, nil, nil, malformed
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Params{}, nil, nil, malformed
	}

	return params, salt, key, nil
}
