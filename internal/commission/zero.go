package commission

// Zero charges no commission.
type Zero struct{}

func NewZero() *Zero {
	return &Zero{}
}

// Calculate implements Model.
func (z *Zero) Calculate(price float64, quantity float64) float64 {
	return 0
}

// Rate implements Model.
func (z *Zero) Rate() float64 {
	return 0
}
