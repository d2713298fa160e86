package orders

import (
	"fmt"
	"math/rand/v2"
)

// NewOTP returns a 6-digit delivery code. It guards a doorstep handover,
// not an account, so math/rand is sufficient.
func NewOTP() string {
	return fmt.Sprintf("%06d", rand.IntN(1_000_000))
}
