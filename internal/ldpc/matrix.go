// Package ldpc builds and applies the low-density parity-check matrix used
// for block-level repair of files broadcast with an "ldpc:" FEC descriptor.
// A file of k data blocks is protected by n-k parity blocks; the parity
// check matrix links each parity block to a small, pseudo-randomly chosen
// subset of the data blocks, and single-erasure XOR repair recovers any one
// missing data block per satisfied row.
package ldpc

// pmmsRand is the Park-Miller minimal standard PRNG used to build the
// parity check matrix deterministically from a seed shared between
// broadcaster and receiver.
type pmmsRand struct {
	state int64
}

const pmmsModulus = 1<<31 - 1

// newPMMSRand returns a generator seeded identically to the broadcaster's.
func newPMMSRand(seed int64) *pmmsRand {
	return &pmmsRand{state: seed}
}

// next advances the generator and draws a value in [0, n).
func (r *pmmsRand) next(n int) int {
	r.state = (7 * 7 * 7 * 7 * 7 * r.state) % pmmsModulus
	return int(r.state % int64(n))
}

// BuildMatrix constructs the left side of the parity check matrix: n-k rows
// (one per parity block), each listing the indices of the k data-block
// columns it covers. N1 is the target number of "1" entries per data
// column, homogeneously distributed across rows; when N1 exceeds the n-k
// rows, a column ends up in every row and in no more than that.
func BuildMatrix(k, n, n1 int, seed int64) [][]int {
	rows := n - k
	rnd := newPMMSRand(seed)

	u := make([]int, n1*k)
	for h := range u {
		u[h] = h % rows
	}

	m := make([][]int, rows)
	for i := range m {
		m[i] = nil
	}

	contains := func(row []int, j int) bool {
		for _, v := range row {
			if v == j {
				return true
			}
		}
		return false
	}

	t := 0
	for j := 0; j < k; j++ {
		for h := 0; h < n1; h++ {
			i := t
			for i < n1*k && contains(m[u[i]], j) {
				i++
			}
			if i < n1*k {
				for {
					i = t + rnd.next(n1*k-t)
					if !contains(m[u[i]], j) {
						break
					}
				}
				m[u[i]] = append(m[u[i]], j)
				u[i] = u[t]
				t++
			} else {
				free := false
				for r := 0; r < rows; r++ {
					if !contains(m[r], j) {
						free = true
						break
					}
				}
				if !free {
					// every row already covers column j
					continue
				}
				for {
					i = rnd.next(rows)
					if !contains(m[i], j) {
						break
					}
				}
				m[i] = append(m[i], j)
			}
		}
	}

	// Add extra columns to rows left with fewer than two "1"s; this happens
	// when the code rate is small enough that N1 alone can't spread entries
	// across every row.
	for i := 0; i < rows; i++ {
		if len(m[i]) == 0 {
			j := rnd.next(k)
			m[i] = append(m[i], j)
		}
		if len(m[i]) == 1 {
			for {
				j := rnd.next(k)
				if !contains(m[i], j) {
					m[i] = append(m[i], j)
					break
				}
			}
		}
	}

	return m
}
