// Package params describes named model parameters and the helpers used when
// fine-tuning: grouping parameters for differential regularisation, taking
// and restoring state snapshots, and merging checkpoints.
package params

import (
	"strings"
)

// Role tells weights from biases.
type Role int

const (
	RoleOther Role = iota
	RoleWeight
	RoleBias
)

func (r Role) String() string {
	switch r {
	case RoleWeight:
		return "weight"
	case RoleBias:
		return "bias"
	default:
		return "other"
	}
}

// Batch-norm scopes recognised by the selectors.
const (
	ScopeBN1 = "bn1"
	ScopeBN2 = "bn2"
	ScopeBN3 = "bn3"
)

// Param is a named, trainable tensor owned by a model. Role and NormScope
// are set by the model when it builds the parameter.
type Param struct {
	Name      string
	Shape     []int
	Data      []float64
	Trainable bool
	Role      Role
	// NormScope names the batch-norm layer the parameter belongs to, or is
	// empty when it is not inside one.
	NormScope string
}

// Numel returns the element count implied by Shape.
func (p *Param) Numel() int {
	n := 1
	for _, d := range p.Shape {
		n *= d
	}
	return n
}

// Module is anything exposing its parameters in a stable order.
type Module interface {
	NamedParameters() []*Param
}

// New builds a zero-filled parameter with tags inferred from name.
func New(name string, shape []int, trainable bool) *Param {
	role, scope := Infer(name)
	p := &Param{
		Name:      name,
		Shape:     append([]int(nil), shape...),
		Trainable: trainable,
		Role:      role,
		NormScope: scope,
	}
	p.Data = make([]float64, p.Numel())
	return p
}

// Infer derives tags from a dotted parameter name such as
// "layer1.bn1.weight". Used for parameters that come without tags, such as
// names read from a foreign checkpoint. A bn1 or bn2 segment anywhere in
// the path wins over bn3.
func Infer(name string) (Role, string) {
	role := RoleOther
	switch {
	case strings.HasSuffix(name, "bias"):
		role = RoleBias
	case strings.HasSuffix(name, "weight"):
		role = RoleWeight
	}
	scope := ""
	for _, seg := range strings.Split(name, ".") {
		switch seg {
		case ScopeBN1, ScopeBN2:
			return role, seg
		case ScopeBN3:
			scope = seg
		}
	}
	return role, scope
}

// List adapts a plain slice to Module.
type List []*Param

// NamedParameters implements Module.
func (l List) NamedParameters() []*Param { return l }

// Count returns the total number of scalar values in m.
func Count(m Module) int {
	n := 0
	for _, p := range m.NamedParameters() {
		n += p.Numel()
	}
	return n
}

// Millions expresses a parameter count in millions, as printed in
// "Model Size: %.5fM".
func Millions(count int) float64 {
	return float64(count) / 1e6
}
