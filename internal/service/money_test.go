package service

import "testing"

func TestCutOfRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount int64
		rate   float64
		want   int64
	}{
		{100, 0.05, 5},
		{10, 0.05, 1},  // 0.5 rounds up
		{9, 0.05, 0},   // 0.45 rounds down
		{1, 0.5, 1},    // 0.5 rounds up
		{100, 0, 0},
		{0, 0.05, 0},
	}
	for _, c := range cases {
		if got := cutOf(c.amount, c.rate); got != c.want {
			t.Fatalf("cutOf(%d, %v) = %d, want %d", c.amount, c.rate, got, c.want)
		}
	}
}

func TestBuybackFloorsAtOne(t *testing.T) {
	cases := []struct {
		price int64
		want  int64
	}{
		{100, 10},
		{10, 1},
		{15, 2}, // 1.5 rounds up
		{5, 1},  // 0.5 rounds up
		{4, 1},  // floored at one
		{1, 1},
	}
	for _, c := range cases {
		if got := buybackOf(c.price); got != c.want {
			t.Fatalf("buybackOf(%d) = %d, want %d", c.price, got, c.want)
		}
	}
}

func TestTotalOfOverflow(t *testing.T) {
	if total, ok := totalOf(10, 3); !ok || total != 30 {
		t.Fatalf("totalOf(10,3) = %d, %v", total, ok)
	}
	if _, ok := totalOf(maxMoney, 3); ok {
		t.Fatalf("overflow not detected")
	}
	if _, ok := totalOf(0, 3); ok {
		t.Fatalf("zero price accepted")
	}
	if _, ok := countOf(maxMoney, 2); ok {
		t.Fatalf("count overflow not detected")
	}
}
