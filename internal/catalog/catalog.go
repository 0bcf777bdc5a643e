package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// ItemDef declares a known item type. Only items present in the
// catalog can be imported into shops.
type ItemDef struct {
	RegistryID string `yaml:"registry_id"`
	Name       string `yaml:"name"`
	MaxStack   int64  `yaml:"max_stack"`
}

// SeedOffer is one entry of a bulk shop import, either from the
// catalog file's seed section or from the import API.
type SeedOffer struct {
	ShopID        string                 `yaml:"shop_id" json:"shop_id"`
	RegistryID    string                 `yaml:"registry_id" json:"registry_id"`
	Data          map[string]interface{} `yaml:"data,omitempty" json:"data,omitempty"`
	Count         int64                  `yaml:"count" json:"count"`
	Price         int64                  `yaml:"price" json:"price"`
	Stock         int64                  `yaml:"stock" json:"stock"`
	InfiniteStock bool                   `yaml:"infinite_stock" json:"infinite_stock"`
	BuyEnabled    bool                   `yaml:"buy_enabled" json:"buy_enabled"`
	SellEnabled   bool                   `yaml:"sell_enabled" json:"sell_enabled"`
	Category      string                 `yaml:"category" json:"category"`
}

// ItemData encodes the seed's embedded data as the opaque payload form
// used by the item codec. Returns nil when the seed has none.
func (s *SeedOffer) ItemData() (json.RawMessage, error) {
	if len(s.Data) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid seed data for %s: %w", s.RegistryID, err)
	}
	return raw, nil
}

// Catalog is the item registry plus optional shop seeds, loaded once
// at startup from a YAML file.
type Catalog struct {
	Items []ItemDef   `yaml:"items"`
	Seeds []SeedOffer `yaml:"seed_offers"`

	byID map[string]ItemDef
}

// Load reads and indexes a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c.index()

	log.Printf("[Catalog] Loaded %d item types, %d seed offers from %s", len(c.Items), len(c.Seeds), path)
	return &c, nil
}

// New builds a catalog from in-process definitions.
func New(items []ItemDef, seeds []SeedOffer) *Catalog {
	c := &Catalog{Items: items, Seeds: seeds}
	c.index()
	return c
}

// Empty returns a catalog that knows no items. Lookups fail closed.
func Empty() *Catalog {
	c := &Catalog{}
	c.index()
	return c
}

func (c *Catalog) index() {
	c.byID = make(map[string]ItemDef, len(c.Items))
	for _, item := range c.Items {
		c.byID[item.RegistryID] = item
	}
}

// Knows reports whether the registry id is a known item type.
func (c *Catalog) Knows(registryID string) bool {
	_, ok := c.byID[registryID]
	return ok
}

// Get returns the item definition for a registry id.
func (c *Catalog) Get(registryID string) (ItemDef, bool) {
	def, ok := c.byID[registryID]
	return def, ok
}
