package commission

const (
	perShareFee = 0.005
	minimumFee  = 1.0
)

// PerShare charges a per-unit fee with a minimum per fill, the structure used
// by US retail brokers.
type PerShare struct{}

func NewPerShare() *PerShare {
	return &PerShare{}
}

// Calculate implements Model.
func (p *PerShare) Calculate(price float64, quantity float64) float64 {
	fee := quantity * perShareFee
	if fee < minimumFee {
		return minimumFee
	}

	return fee
}

// Rate implements Model.
func (p *PerShare) Rate() float64 {
	return perShareFee
}
