// Package gen generates deterministic random circuits for the bench harness.
package gen

import (
	"math"
	"math/rand"

	"github.com/hqsim/hqsim/statevec"
)

// Op is one gate application.
type Op struct {
	Gate    statevec.Gate
	Targets []uint32
}

// RandomCircuit produces n gates over qubitCount qubits, mixing single-qubit
// rotations with CNOTs so both local and cross-block paths get exercised.
func RandomCircuit(n int, qubitCount uint32, seed int64) []Op {
	rng := rand.New(rand.NewSource(seed))
	ops := make([]Op, 0, n)
	for i := 0; i < n; i++ {
		q := uint32(rng.Intn(int(qubitCount)))
		switch rng.Intn(4) {
		case 0:
			ops = append(ops, Op{Gate: statevec.H(), Targets: []uint32{q}})
		case 1:
			ops = append(ops, Op{Gate: statevec.RY(rng.Float64() * math.Pi), Targets: []uint32{q}})
		case 2:
			ops = append(ops, Op{Gate: statevec.RZ(rng.Float64() * math.Pi), Targets: []uint32{q}})
		default:
			p := uint32(rng.Intn(int(qubitCount)))
			if p == q {
				p = (p + 1) % qubitCount
			}
			ops = append(ops, Op{Gate: statevec.CNOT(), Targets: []uint32{q, p}})
		}
	}
	return ops
}
