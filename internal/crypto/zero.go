package crypto

import (
	"crypto/rsa"
	"math/big"
)

// Zero securely overwrites a byte slice with zeros to clear sensitive data from memory.
func Zero(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}

func zeroBigInt(n *big.Int) {
	if n == nil {
		return
	}
	words := n.Bits()
	for i := range words {
		words[i] = 0
	}
	n.SetInt64(0)
}

// zeroRSA clears the private exponent and primes of an RSA key.
// Best effort: internal copies held by the standard library are not reachable.
func zeroRSA(k *rsa.PrivateKey) {
	if k == nil {
		return
	}
	zeroBigInt(k.D)
	for _, p := range k.Primes {
		zeroBigInt(p)
	}
	zeroBigInt(k.Precomputed.Dp)
	zeroBigInt(k.Precomputed.Dq)
	zeroBigInt(k.Precomputed.Qinv)
}
