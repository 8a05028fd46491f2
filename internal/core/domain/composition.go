package domain

// TokenComposition maps a token identifier (address or symbol) to its pool weight.
type TokenComposition map[string]float64

// Normalize returns a new composition whose weights sum to 1. A composition
// with no positive total normalizes to an empty one.
func (c TokenComposition) Normalize() TokenComposition {
	var total float64
	for _, w := range c {
		if w > 0 {
			total += w
		}
	}

	out := make(TokenComposition, len(c))
	if total <= 0 {
		return out
	}
	for token, w := range c {
		if w <= 0 {
			continue
		}
		out[token] = w / total
	}
	return out
}

// Sum returns the total weight.
func (c TokenComposition) Sum() float64 {
	var total float64
	for _, w := range c {
		total += w
	}
	return total
}

// OpenPositions maps a token identifier to the platform's signed net notional.
// Positive is net long, negative is net short.
type OpenPositions map[string]float64

// PriceTable maps a canonical token symbol to its USD unit price.
type PriceTable map[string]float64

// Exposure maps a token display name to the holder's USD exposure.
type Exposure map[string]float64

// Total returns the summed USD exposure.
func (e Exposure) Total() float64 {
	var total float64
	for _, v := range e {
		total += v
	}
	return total
}
