package random

import (
	"crypto/rand"
	"math/big"
)

// Intn returns a uniform random integer in [0, n). Panics if n <= 0.
func Intn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}
