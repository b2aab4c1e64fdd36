package params

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
)

// Tensor is a detached copy of a parameter's values.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Clone returns a deep copy of t.
func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

// StateDict maps parameter names to values.
type StateDict map[string]Tensor

// Keys returns the names in sorted order.
func (sd StateDict) Keys() []string {
	keys := make([]string, 0, len(sd))
	for k := range sd {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// State snapshots the parameters of m.
func State(m Module) StateDict {
	sd := make(StateDict)
	for _, p := range m.NamedParameters() {
		sd[p.Name] = Tensor{Shape: p.Shape, Data: p.Data}.Clone()
	}
	return sd
}

// Load copies values from sd into m. Every parameter of m must be present
// with a matching shape; extra entries in sd are an error as well.
func Load(m Module, sd StateDict) error {
	ps := m.NamedParameters()
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		t, ok := sd[p.Name]
		if !ok {
			return fmt.Errorf("load state: missing key %s", p.Name)
		}
		if !slices.Equal(t.Shape, p.Shape) || len(t.Data) != len(p.Data) {
			return fmt.Errorf("load state: %s: shape %v does not match %v", p.Name, t.Shape, p.Shape)
		}
		copy(p.Data, t.Data)
		seen[p.Name] = true
	}
	for _, k := range sd.Keys() {
		if !seen[k] {
			return fmt.Errorf("load state: unexpected key %s", k)
		}
	}
	return nil
}

// FilterCheckpoint merges ckpt over the current state of m. Keys unknown to
// m are dropped. Biases of the bn1, bn2 and bn3 scopes keep the model's
// value so they restart from their initialisation.
func FilterCheckpoint(m Module, ckpt StateDict) StateDict {
	merged := State(m)
	for _, p := range m.NamedParameters() {
		t, ok := ckpt[p.Name]
		if !ok || isResetBias(p) {
			continue
		}
		merged[p.Name] = t.Clone()
	}
	return merged
}

// PrintTable writes one row per entry of sd: index, name, shape, element
// type and whether the parameter is trainable.
func PrintTable(w io.Writer, sd StateDict, trainable map[string]bool) error {
	keys := sd.Keys()
	kmax := 0
	for _, k := range keys {
		kmax = max(kmax, len(k))
	}
	for i, k := range keys {
		shape := shapeString(sd[k].Shape)
		_, err := fmt.Fprintf(w, "%-5d %-*s %-23s %s %t\n", i, kmax+3, k, shape, "float64", trainable[k])
		if err != nil {
			return err
		}
	}
	return nil
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
