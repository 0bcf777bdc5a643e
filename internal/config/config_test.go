package config

import "testing"

func TestValidateRejectsBadRates(t *testing.T) {
	cfg := &Config{}
	cfg.Economy.ShopTaxRate = 0.05
	cfg.Economy.AuctionFeeRate = 0.05
	cfg.Economy.MinStartingPrice = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg.Economy.ShopTaxRate = 1.0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("tax rate of 1.0 accepted")
	}

	cfg.Economy.ShopTaxRate = 0.05
	cfg.Economy.MinStartingPrice = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero minimum price accepted")
	}

	cfg.Economy.MinStartingPrice = 1
	cfg.Economy.ListingFee = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative listing fee accepted")
	}
}

func TestMySQLDSN(t *testing.T) {
	s := StoreDBConfig{Host: "db", Port: 3306, Name: "bazaar", User: "root", Password: "pw"}
	want := "root:pw@tcp(db:3306)/bazaar?parseTime=true"
	if got := s.MySQLDSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}
