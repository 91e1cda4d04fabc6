package commission

// FixedRate charges a constant fraction of the fill notional (price * quantity).
type FixedRate struct {
	rate float64
}

func NewFixedRate(rate float64) *FixedRate {
	return &FixedRate{rate: rate}
}

// Calculate implements Model.
func (f *FixedRate) Calculate(price float64, quantity float64) float64 {
	return price * quantity * f.rate
}

// Rate implements Model.
func (f *FixedRate) Rate() float64 {
	return f.rate
}
