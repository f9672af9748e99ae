package statevec

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// sqrt2Inv is 1/√2.
const sqrt2Inv = 0.7071067811865476

// Gate is a 2^k × 2^k unitary over k target qubits. Matrix basis index bit j
// corresponds to target qubit j as passed to Store.ApplyGate, so for
// CNOT(control, target) the control is the first argument.
type Gate struct {
	Name   string
	Arity  int
	Matrix [][]complex128 // row-major, len 2^Arity
}

func gate1(name string, m00, m01, m10, m11 complex128) Gate {
	return Gate{Name: name, Arity: 1, Matrix: [][]complex128{{m00, m01}, {m10, m11}}}
}

// X is the Pauli-X (NOT) gate: flips |0⟩ ↔ |1⟩.
func X() Gate { return gate1("X", 0, 1, 1, 0) }

// Y is the Pauli-Y gate.
func Y() Gate { return gate1("Y", 0, -1i, 1i, 0) }

// Z is the Pauli-Z gate: |1⟩ → -|1⟩.
func Z() Gate { return gate1("Z", 1, 0, 0, -1) }

// H is the Hadamard gate: |0⟩ → (|0⟩+|1⟩)/√2.
func H() Gate {
	return gate1("H", complex(sqrt2Inv, 0), complex(sqrt2Inv, 0), complex(sqrt2Inv, 0), complex(-sqrt2Inv, 0))
}

// S is the phase gate: |1⟩ → i|1⟩.
func S() Gate { return gate1("S", 1, 0, 0, 1i) }

// Sdg is the adjoint of S.
func Sdg() Gate { return gate1("SDG", 1, 0, 0, -1i) }

// T is the π/8 gate.
func T() Gate { return gate1("T", 1, 0, 0, cmplx.Exp(complex(0, math.Pi/4))) }

// Tdg is the adjoint of T.
func Tdg() Gate { return gate1("TDG", 1, 0, 0, cmplx.Exp(complex(0, -math.Pi/4))) }

// Phase applies phase e^{iθ} to |1⟩.
func Phase(theta float64) Gate {
	return gate1("P", 1, 0, 0, cmplx.Exp(complex(0, theta)))
}

// RX rotates around the X axis by theta.
func RX(theta float64) Gate {
	cos := complex(math.Cos(theta/2), 0)
	sin := complex(0, -math.Sin(theta/2))
	return gate1("RX", cos, sin, sin, cos)
}

// RY rotates around the Y axis by theta.
func RY(theta float64) Gate {
	cos := complex(math.Cos(theta/2), 0)
	sin := complex(math.Sin(theta/2), 0)
	return gate1("RY", cos, -sin, sin, cos)
}

// RZ rotates around the Z axis by theta.
func RZ(theta float64) Gate {
	return gate1("RZ", cmplx.Exp(complex(0, -theta/2)), 0, 0, cmplx.Exp(complex(0, theta/2)))
}

// CNOT flips the target (second qubit) when the control (first qubit) is set.
func CNOT() Gate {
	return Gate{Name: "CNOT", Arity: 2, Matrix: [][]complex128{
		{1, 0, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
	}}
}

// CZ applies a phase flip when both qubits are set.
func CZ() Gate {
	return Gate{Name: "CZ", Arity: 2, Matrix: [][]complex128{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, -1},
	}}
}

// SWAP exchanges the two qubits.
func SWAP() Gate {
	return Gate{Name: "SWAP", Arity: 2, Matrix: [][]complex128{
		{1, 0, 0, 0},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	}}
}

// Toffoli (CCX) flips the third qubit when the first two are set.
func Toffoli() Gate {
	m := identityMatrix(8)
	m[3], m[7] = m[7], m[3]
	return Gate{Name: "CCX", Arity: 3, Matrix: m}
}

func identityMatrix(n int) [][]complex128 {
	m := make([][]complex128, n)
	for i := range m {
		m[i] = make([]complex128, n)
		m[i][i] = 1
	}
	return m
}

// ByName resolves a gate from its name and optional rotation parameters,
// matching the gate-application input form (name, targets, parameters).
func ByName(name string, params ...float64) (Gate, error) {
	theta := 0.0
	if len(params) > 0 {
		theta = params[0]
	}
	switch strings.ToUpper(name) {
	case "X":
		return X(), nil
	case "Y":
		return Y(), nil
	case "Z":
		return Z(), nil
	case "H":
		return H(), nil
	case "S":
		return S(), nil
	case "SDG":
		return Sdg(), nil
	case "T":
		return T(), nil
	case "TDG":
		return Tdg(), nil
	case "P", "PHASE", "U1":
		return Phase(theta), nil
	case "RX":
		return RX(theta), nil
	case "RY":
		return RY(theta), nil
	case "RZ":
		return RZ(theta), nil
	case "CNOT", "CX":
		return CNOT(), nil
	case "CZ":
		return CZ(), nil
	case "SWAP":
		return SWAP(), nil
	case "CCX", "TOFFOLI":
		return Toffoli(), nil
	}
	return Gate{}, fmt.Errorf("%w: %q", ErrUnknownGate, name)
}
