package itemref

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key identifies an item type together with its embedded data.
// Two stacks with the same registry id but different embedded data
// (enchantments, custom names, rolled stats) get different hashes and
// are never merged or matched against each other.
type Key struct {
	RegistryID string `json:"registry_id"`
	Hash       string `json:"hash"`
}

// Stack is a live item stack as it exists inside an actor's container.
// Data is the opaque embedded payload and must round-trip bit-for-bit.
type Stack struct {
	RegistryID string          `json:"registry_id"`
	Count      int64           `json:"count"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Snapshot is the storable form of a stack: the key, the count and the
// full serialized payload needed to rebuild a live stack later.
type Snapshot struct {
	Key     Key
	Count   int64
	Payload []byte
}

// payloadForm is what actually gets persisted. Count is deliberately
// excluded: listings, offers and deliveries carry their own counts.
type payloadForm struct {
	RegistryID string          `json:"registry_id"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// HashOf computes the content hash for a registry id plus embedded data.
// Structurally identical data always hashes the same: the JSON is
// compacted before hashing so whitespace differences do not matter.
func HashOf(registryID string, data json.RawMessage) (string, error) {
	h := sha256.New()
	h.Write([]byte(registryID))
	h.Write([]byte{0})
	if len(data) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return "", fmt.Errorf("invalid item data: %w", err)
		}
		h.Write(buf.Bytes())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Take converts a live stack into a storable snapshot.
func Take(s Stack) (Snapshot, error) {
	if s.RegistryID == "" {
		return Snapshot{}, fmt.Errorf("stack has no registry id")
	}
	if s.Count <= 0 {
		return Snapshot{}, fmt.Errorf("stack count must be positive, got %d", s.Count)
	}

	hash, err := HashOf(s.RegistryID, s.Data)
	if err != nil {
		return Snapshot{}, err
	}

	payload, err := json.Marshal(payloadForm{RegistryID: s.RegistryID, Data: s.Data})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to serialize stack: %w", err)
	}

	return Snapshot{
		Key:     Key{RegistryID: s.RegistryID, Hash: hash},
		Count:   s.Count,
		Payload: payload,
	}, nil
}

// Materialize rebuilds a live stack from a stored payload and count.
// A malformed payload is fatal to the single call only.
func Materialize(payload []byte, count int64) (Stack, error) {
	if count <= 0 {
		return Stack{}, fmt.Errorf("count must be positive, got %d", count)
	}

	var form payloadForm
	if err := json.Unmarshal(payload, &form); err != nil {
		return Stack{}, fmt.Errorf("could not reconstruct item: %w", err)
	}
	if form.RegistryID == "" {
		return Stack{}, fmt.Errorf("could not reconstruct item: missing registry id")
	}

	return Stack{
		RegistryID: form.RegistryID,
		Count:      count,
		Data:       form.Data,
	}, nil
}
