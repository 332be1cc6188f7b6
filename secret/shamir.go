package secret

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrInsufficientShares is returned by Recover when fewer than the
// required number of distinct shares are supplied.
var ErrInsufficientShares = errors.New("insufficient shares")

// Share is one participant's part of a split secret: the evaluation of
// the per-byte polynomials at x = Index. Shares are independent of each
// other and reveal nothing below the threshold.
type Share struct {
	Index byte
	Value []byte
}

// Split divides secret into total shares such that any threshold of
// them recover it exactly. For each secret byte a random polynomial of
// degree threshold-1 over GF(256) is built with the byte as constant
// term and evaluated at x = 1..total.
func Split(secret []byte, threshold, total int) ([]Share, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret must not be empty")
	}
	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	if total < threshold {
		return nil, fmt.Errorf("total shares %d below threshold %d", total, threshold)
	}
	if total > 255 {
		return nil, errors.New("at most 255 shares")
	}

	shares := make([]Share, total)
	for i := range shares {
		shares[i] = Share{Index: byte(i + 1), Value: make([]byte, len(secret))}
	}

	coeffs := make([]byte, threshold)
	for pos, b := range secret {
		coeffs[0] = b
		if _, err := io.ReadFull(rand.Reader, coeffs[1:]); err != nil {
			return nil, err
		}

		for i := range shares {
			shares[i].Value[pos] = gfEval(coeffs, shares[i].Index)
		}
	}

	return shares, nil
}

// Recover reconstructs the original secret from at least threshold
// shares with distinct indices, interpolating each byte at x = 0.
// Duplicated indices are ignored; extra shares beyond the threshold are
// harmless. Correctness is only guaranteed at or above the threshold.
func Recover(shares []Share, threshold int) ([]byte, error) {
	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}

	distinct := make([]Share, 0, threshold)
	seen := map[byte]bool{}
	for _, share := range shares {
		if share.Index == 0 {
			return nil, errors.New("share index must be nonzero")
		}
		if seen[share.Index] {
			continue
		}
		seen[share.Index] = true
		distinct = append(distinct, share)
		if len(distinct) == threshold {
			break
		}
	}

	if len(distinct) < threshold {
		return nil, fmt.Errorf("%w: got %d distinct, need %d", ErrInsufficientShares, len(distinct), threshold)
	}

	size := len(distinct[0].Value)
	for _, share := range distinct {
		if len(share.Value) != size {
			return nil, errors.New("shares have mismatched lengths")
		}
	}

	secret := make([]byte, size)
	for pos := range secret {
		var acc byte
		for i, si := range distinct {
			// Lagrange basis value at x=0 for the i-th share.
			basis := byte(1)
			for j, sj := range distinct {
				if i == j {
					continue
				}
				basis = gfMul(basis, gfDiv(sj.Index, sj.Index^si.Index))
			}
			acc ^= gfMul(basis, si.Value[pos])
		}
		secret[pos] = acc
	}

	return secret, nil
}

// gfEval evaluates the polynomial with the given coefficients (constant
// term first) at x, using Horner's rule over GF(256).
func gfEval(coeffs []byte, x byte) byte {
	var out byte
	for i := len(coeffs) - 1; i >= 0; i-- {
		out = gfMul(out, x) ^ coeffs[i]
	}
	return out
}

// gfMul multiplies in GF(2^8) modulo the AES polynomial x^8+x^4+x^3+x+1.
func gfMul(a, b byte) byte {
	var p byte
	for b > 0 {
		if b&1 == 1 {
			p ^= a
		}
		carry := a & 0x80
		a <<= 1
		if carry != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return p
}

func gfDiv(a, b byte) byte {
	// b is never zero here: share indices are nonzero and distinct.
	return gfMul(a, gfInv(b))
}

// gfInv computes the multiplicative inverse as b^254, since the
// multiplicative group of GF(256) has order 255.
func gfInv(b byte) byte {
	out := byte(1)
	base := b
	for exp := 254; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			out = gfMul(out, base)
		}
		base = gfMul(base, base)
	}
	return out
}
