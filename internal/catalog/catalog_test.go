package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCatalog = `
items:
  - registry_id: bazaar:apple
    name: Apple
    max_stack: 64
  - registry_id: bazaar:iron_sword
    name: Iron Sword
    max_stack: 1
seed_offers:
  - shop_id: general
    registry_id: bazaar:apple
    count: 2
    price: 10
    stock: 100
    buy_enabled: true
    sell_enabled: true
    category: food
`

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !c.Knows("bazaar:apple") || !c.Knows("bazaar:iron_sword") {
		t.Fatalf("catalog missing declared items")
	}
	if c.Knows("bazaar:nope") {
		t.Fatalf("unknown item reported as known")
	}

	def, ok := c.Get("bazaar:iron_sword")
	if !ok || def.MaxStack != 1 {
		t.Fatalf("Get = %+v, %v", def, ok)
	}

	if len(c.Seeds) != 1 || c.Seeds[0].ShopID != "general" || c.Seeds[0].Price != 10 {
		t.Fatalf("seeds = %+v", c.Seeds)
	}
}

func TestEmptyCatalogFailsClosed(t *testing.T) {
	c := Empty()
	if c.Knows("bazaar:apple") {
		t.Fatalf("empty catalog knows items")
	}
}

func TestSeedItemData(t *testing.T) {
	s := SeedOffer{RegistryID: "bazaar:apple"}
	data, err := s.ItemData()
	if err != nil || data != nil {
		t.Fatalf("ItemData on empty = %s, %v", data, err)
	}

	s.Data = map[string]interface{}{"color": "red"}
	data, err = s.ItemData()
	if err != nil || string(data) != `{"color":"red"}` {
		t.Fatalf("ItemData = %s, %v", data, err)
	}
}
