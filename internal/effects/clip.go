package effects

// Clip hard-limits the signal to ±Limit.
type Clip struct {
	Limit float64
}

func (c Clip) Process(x float64) float64 {
	if x > c.Limit {
		return c.Limit
	}
	if x < -c.Limit {
		return -c.Limit
	}
	return x
}

func (c Clip) Reset() {}
