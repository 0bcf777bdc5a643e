package itemref

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	a, err := HashOf("bazaar:iron_sword", json.RawMessage(`{"sharpness": 3}`))
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}
	b, err := HashOf("bazaar:iron_sword", json.RawMessage(`{ "sharpness":  3 }`))
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}
	if a != b {
		t.Fatalf("structurally identical data hashed differently: %s vs %s", a, b)
	}
}

func TestHashDistinguishesData(t *testing.T) {
	plain, _ := HashOf("bazaar:iron_sword", nil)
	sharp, _ := HashOf("bazaar:iron_sword", json.RawMessage(`{"sharpness":3}`))
	if plain == sharp {
		t.Fatalf("different embedded data produced the same hash")
	}
	other, _ := HashOf("bazaar:gold_sword", nil)
	if plain == other {
		t.Fatalf("different registry ids produced the same hash")
	}
}

func TestTakeMaterializeRoundTrip(t *testing.T) {
	live := Stack{
		RegistryID: "bazaar:enchanted_book",
		Count:      4,
		Data:       json.RawMessage(`{"enchant":"mending","level":1}`),
	}

	snap, err := Take(live)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if snap.Key.RegistryID != live.RegistryID {
		t.Fatalf("snapshot registry id = %s, want %s", snap.Key.RegistryID, live.RegistryID)
	}
	if snap.Count != 4 {
		t.Fatalf("snapshot count = %d, want 4", snap.Count)
	}
	if snap.Key.Hash == "" {
		t.Fatalf("snapshot has empty hash")
	}

	back, err := Materialize(snap.Payload, 2)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if back.RegistryID != live.RegistryID || back.Count != 2 {
		t.Fatalf("materialized %s x%d, want %s x2", back.RegistryID, back.Count, live.RegistryID)
	}
	if !bytes.Equal(back.Data, live.Data) {
		t.Fatalf("embedded data did not round-trip: %s vs %s", back.Data, live.Data)
	}
}

func TestTakeRejectsInvalidStacks(t *testing.T) {
	if _, err := Take(Stack{RegistryID: "", Count: 1}); err == nil {
		t.Fatalf("expected error for missing registry id")
	}
	if _, err := Take(Stack{RegistryID: "bazaar:dirt", Count: 0}); err == nil {
		t.Fatalf("expected error for non-positive count")
	}
}

func TestMaterializeRejectsMalformedPayload(t *testing.T) {
	if _, err := Materialize([]byte(`{not json`), 1); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if _, err := Materialize([]byte(`{"data":{}}`), 1); err == nil {
		t.Fatalf("expected error for payload without registry id")
	}
}
