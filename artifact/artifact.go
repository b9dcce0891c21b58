// Package artifact defines the persisted model bundle and its binary codec.
//
// Layout: 8-byte magic, big-endian uint32 format version, big-endian uint32
// CRC-32 (IEEE) of the payload, then the payload described in codec.go.
// Equal artifacts always encode to equal bytes.
package artifact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/google/uuid"

	"github.com/charangentem-coder/rental-price-predictor/features"
	"github.com/charangentem-coder/rental-price-predictor/forest"
	"github.com/charangentem-coder/rental-price-predictor/models"
)

// FormatVersion is bumped whenever the payload layout changes.
const FormatVersion uint32 = 1

var magic = [8]byte{'R', 'E', 'N', 'T', 'M', 'D', 'L', 0}

const headerLen = len(magic) + 4 + 4

// fingerprintSpace namespaces content-derived artifact IDs.
var fingerprintSpace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("rental-price-predictor/model-artifact"))

// ModelArtifact is everything needed to reproduce predictions without retraining.
// It is replaced wholesale on retraining and never modified once built.
type ModelArtifact struct {
	SchemaVersion uint32
	Schema        features.Schema
	Transformer   features.State
	Estimator     forest.Forest
}

// New assembles an artifact at the current format version.
func New(schema *features.Schema, state *features.State, est *forest.Forest) *ModelArtifact {
	return &ModelArtifact{
		SchemaVersion: FormatVersion,
		Schema:        *schema,
		Transformer:   *state,
		Estimator:     *est,
	}
}

// Validate checks the schema, the transformer statistics and the estimator
// independently and against each other.
func (a *ModelArtifact) Validate() error {
	if a.SchemaVersion != FormatVersion {
		return fmt.Errorf("schema version %d, want %d", a.SchemaVersion, FormatVersion)
	}
	if err := a.Schema.Validate(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := a.Transformer.Matches(&a.Schema); err != nil {
		return fmt.Errorf("transformer: %w", err)
	}
	if err := a.Estimator.Validate(); err != nil {
		return fmt.Errorf("estimator: %w", err)
	}
	if a.Estimator.NFeatures != a.Schema.Width() {
		return fmt.Errorf("estimator expects %d features, schema encodes %d",
			a.Estimator.NFeatures, a.Schema.Width())
	}
	return nil
}

// Fingerprint is a UUID derived from the artifact content. Identical
// training runs produce identical fingerprints.
func (a *ModelArtifact) Fingerprint() uuid.UUID {
	return uuid.NewSHA1(fingerprintSpace, encodePayload(a))
}

// Serialize encodes the artifact. Output is byte-identical for equal artifacts.
func Serialize(a *ModelArtifact) ([]byte, error) {
	if a == nil {
		return nil, errors.New("artifact: serialize: nil artifact")
	}
	payload := encodePayload(a)

	out := make([]byte, headerLen, headerLen+len(payload))
	copy(out, magic[:])
	binary.BigEndian.PutUint32(out[8:12], a.SchemaVersion)
	binary.BigEndian.PutUint32(out[12:16], crc32.ChecksumIEEE(payload))
	return append(out, payload...), nil
}

// Deserialize decodes and validates an artifact. Any failure wraps
// models.ErrCorruptArtifact.
func Deserialize(data []byte) (*ModelArtifact, error) {
	if len(data) < headerLen {
		return nil, corrupt("truncated header (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:8], magic[:]) {
		return nil, corrupt("bad magic")
	}
	if v := binary.BigEndian.Uint32(data[8:12]); v != FormatVersion {
		return nil, corrupt("unsupported format version %d (want %d)", v, FormatVersion)
	}
	payload := data[headerLen:]
	if sum := binary.BigEndian.Uint32(data[12:16]); sum != crc32.ChecksumIEEE(payload) {
		return nil, corrupt("checksum mismatch")
	}

	a, err := decodePayload(payload)
	if err != nil {
		return nil, corrupt("decode payload: %v", err)
	}
	a.SchemaVersion = FormatVersion
	if err := a.Validate(); err != nil {
		return nil, corrupt("%v", err)
	}
	return a, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("artifact: %s: %w", fmt.Sprintf(format, args...), models.ErrCorruptArtifact)
}
