package params

import "math"

// Groups partitions the trainable parameters of a model.
type Groups struct {
	// Weights holds every trainable weight, including those in Slim.
	Weights []*Param
	// Biases holds every trainable bias.
	Biases []*Param
	// Slim holds the weights of the bn1 and bn2 scopes, the channel scales
	// that the sparsity penalty acts on.
	Slim []*Param
}

// Extract splits the trainable parameters of m into groups. Frozen
// parameters and parameters that are neither weight nor bias are skipped.
func Extract(m Module) Groups {
	var g Groups
	for _, p := range m.NamedParameters() {
		if !p.Trainable {
			continue
		}
		switch p.Role {
		case RoleBias:
			g.Biases = append(g.Biases, p)
		case RoleWeight:
			g.Weights = append(g.Weights, p)
			if isSlimScope(p.NormScope) {
				g.Slim = append(g.Slim, p)
			}
		}
	}
	return g
}

// SelectSlim returns the trainable bn1/bn2 weights of m in model order.
func SelectSlim(m Module) []*Param {
	return Extract(m).Slim
}

// Names lists the names of ps.
func Names(ps []*Param) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return names
}

// L1Penalty is the sum of absolute values over ps.
func L1Penalty(ps []*Param) float64 {
	sum := 0.0
	for _, p := range ps {
		for _, v := range p.Data {
			sum += math.Abs(v)
		}
	}
	return sum
}

func isSlimScope(scope string) bool {
	return scope == ScopeBN1 || scope == ScopeBN2
}

// isResetBias reports whether p keeps its initial value on resume.
func isResetBias(p *Param) bool {
	if p.Role != RoleBias {
		return false
	}
	switch p.NormScope {
	case ScopeBN1, ScopeBN2, ScopeBN3:
		return true
	}
	return false
}
