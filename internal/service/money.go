package service

import "math"

// maxMoney caps any single money movement. Amounts past this point are
// treated as overflow before any wallet is touched.
const maxMoney = math.MaxInt64 / 2

// buybackRate is the fraction of the listed price a shop pays when
// buying items back from an actor.
const buybackRate = 0.1

// buybackOf returns the per-unit value a shop pays on a sell. Never
// below one minor unit, so any sellable item is worth something.
func buybackOf(price int64) int64 {
	v := cutOf(price, buybackRate)
	if v < 1 {
		v = 1
	}
	return v
}

// cutOf computes a fee or tax as a fraction of amount, rounded half up.
func cutOf(amount int64, rate float64) int64 {
	if rate <= 0 || amount <= 0 {
		return 0
	}
	cut := int64(math.Floor(float64(amount)*rate + 0.5))
	if cut > amount {
		return amount
	}
	return cut
}

// totalOf multiplies a per-unit price by a unit count. Returns false
// when the product would overflow; callers fail the operation before
// withdrawing anything.
func totalOf(unitPrice, units int64) (int64, bool) {
	if unitPrice <= 0 || units <= 0 {
		return 0, false
	}
	if unitPrice > maxMoney/units {
		return 0, false
	}
	return unitPrice * units, true
}

// countOf multiplies items-per-unit by units with the same overflow
// guard as totalOf.
func countOf(perUnit, units int64) (int64, bool) {
	if perUnit <= 0 || units <= 0 {
		return 0, false
	}
	if perUnit > maxMoney/units {
		return 0, false
	}
	return perUnit * units, true
}
