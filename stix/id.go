package stix

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator mints object identifiers of the form "<type>--<uuid>".
type Generator interface {
	// NewID returns an identifier for an object of the given type. key is the
	// business key (or, for relationships, the endpoint pair and label) of the
	// object being minted; generators may ignore it.
	NewID(objectType, key string) string
}

// RandomGenerator mints version 4 (random) UUIDs. Every call returns a fresh,
// previously unused identifier.
type RandomGenerator struct{}

// NewID implements Generator.
func (RandomGenerator) NewID(objectType, _ string) string {
	return Prefix(objectType) + uuid.NewString()
}

// DeterministicGenerator mints version 5 UUIDs derived from a namespace, the
// object type and the business key, so the same input always yields the same ID.
//
// ID Generation Algorithm:
//  1. Build the name "<type>:<key>"
//  2. SHA-1 hash it within Namespace (RFC 4122 version 5)
//  3. Return "<type>--<uuid>"
type DeterministicGenerator struct {
	Namespace uuid.UUID
}

// DefaultNamespace is used by NewDeterministicGenerator when no namespace is configured.
var DefaultNamespace = uuid.MustParse("00abedb4-aa42-466c-9c01-fed23315a9b7")

// NewDeterministicGenerator creates a DeterministicGenerator. A nil namespace
// selects DefaultNamespace.
func NewDeterministicGenerator(namespace uuid.UUID) *DeterministicGenerator {
	if namespace == uuid.Nil {
		namespace = DefaultNamespace
	}
	return &DeterministicGenerator{Namespace: namespace}
}

// NewID implements Generator.
func (g *DeterministicGenerator) NewID(objectType, key string) string {
	return Prefix(objectType) + uuid.NewSHA1(g.Namespace, []byte(objectType+":"+key)).String()
}

// ParseID splits a STIX identifier into its type and UUID.
func ParseID(id string) (string, uuid.UUID, error) {
	objectType, rest, ok := strings.Cut(id, "--")
	if !ok || objectType == "" {
		return "", uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %q: %v", ErrInvalidID, id, err)
	}
	return objectType, u, nil
}

// ValidateID checks that id is well formed and has the given type prefix.
func ValidateID(id, objectType string) error {
	t, _, err := ParseID(id)
	if err != nil {
		return err
	}
	if t != objectType {
		return fmt.Errorf("%w: %q is not a %s identifier", ErrInvalidID, id, objectType)
	}
	return nil
}
