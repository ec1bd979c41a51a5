package sid

// LFSRSeed is the power-on state of the noise shift register.
const LFSRSeed = 0x7FFFFF

// LFSR is the 23-bit noise shift register with feedback bit22 XOR bit17.
type LFSR uint32

func NewLFSR() LFSR { return LFSRSeed }

// Step clocks the register once.
func (l *LFSR) Step() {
	v := uint32(*l)
	bit := ((v >> 22) ^ (v >> 17)) & 1
	*l = LFSR(((v << 1) | bit) & 0x7FFFFF)
}

// Output taps bits {20,18,14,11,9,5,2,0} into an 8-bit sample.
func (l LFSR) Output() uint8 {
	v := uint32(l)
	return uint8((v>>20&1)<<7 |
		(v>>18&1)<<6 |
		(v>>14&1)<<5 |
		(v>>11&1)<<4 |
		(v>>9&1)<<3 |
		(v>>5&1)<<2 |
		(v>>2&1)<<1 |
		v&1)
}
