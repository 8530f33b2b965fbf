// Package keygen provides the license key generation schemes. The schemes
// were historically duplicated per call site; here they sit behind one
// Generator capability chosen by configuration.
package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces a fresh license key per call. Implementations draw
// from crypto/rand; collision avoidance is left to the unique constraint on
// the license_key column.
type Generator interface {
	NewKey() (string, error)
	Scheme() string
}

const (
	SchemeUUID     = "uuid"
	SchemeAlphabet = "alphabet"
	SchemePrefixed = "prefixed"
)

// New returns the generator for the configured scheme name.
func New(scheme string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case SchemeUUID:
		return uuidGenerator{}, nil
	case SchemeAlphabet, "":
		return alphabetGenerator{length: DefaultAlphabetLength}, nil
	case SchemePrefixed:
		return prefixedGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown key generation scheme %q", scheme)
	}
}

type uuidGenerator struct{}

func (uuidGenerator) NewKey() (string, error) { return uuid.NewString(), nil }
func (uuidGenerator) Scheme() string          { return SchemeUUID }

// keyAlphabet omits 0/O and 1/I so keys survive being read over the phone.
const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultAlphabetLength = 16

type alphabetGenerator struct {
	length int
}

func (g alphabetGenerator) NewKey() (string, error) {
	var sb strings.Builder
	sb.Grow(g.length)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random index: %w", err)
		}
		sb.WriteByte(keyAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func (alphabetGenerator) Scheme() string { return SchemeAlphabet }

const prefixedPrefix = "HAISOFT"

type prefixedGenerator struct{}

// NewKey builds HAISOFT-<6 random chars>-<base36 unix millis>. The
// timestamp tail keeps keys roughly sortable by creation time.
func (prefixedGenerator) NewKey() (string, error) {
	randPart, err := alphabetGenerator{length: 6}.NewKey()
	if err != nil {
		return "", err
	}
	stamp := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	return fmt.Sprintf("%s-%s-%s", prefixedPrefix, randPart, stamp), nil
}

func (prefixedGenerator) Scheme() string { return SchemePrefixed }

// NewBatchID returns a ULID for a new batch. ULIDs sort lexicographically
// by creation time, which keeps batch listings chronological.
func NewBatchID() string {
	return ulid.Make().String()
}
