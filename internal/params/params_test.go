package params

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		scope string
	}{
		{"layer1.bn1.weight", RoleWeight, ScopeBN1},
		{"layer1.bn2.bias", RoleBias, ScopeBN2},
		{"bn3.bias", RoleBias, ScopeBN3},
		{"fc.weight", RoleWeight, ""},
		{"layer1.bn10.weight", RoleWeight, ""},
		{"mybn1.weight", RoleWeight, ""},
		{"bn1.running_mean", RoleOther, ScopeBN1},
		{"x.bn3.bn1.weight", RoleWeight, ScopeBN1},
		{"x.bn3.bn2.weight", RoleWeight, ScopeBN2},
		{"bn3.downsample.weight", RoleWeight, ScopeBN3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, scope := Infer(tt.name)
			assert.Equal(t, tt.role, role)
			assert.Equal(t, tt.scope, scope)
		})
	}
}

func TestSelectSlim(t *testing.T) {
	m := List{
		New("layer1.bn1.weight", []int{4}, true),
		New("layer1.bn1.bias", []int{4}, true),
		New("fc.weight", []int{2, 4}, true),
	}
	assert.Equal(t, []string{"layer1.bn1.weight"}, Names(SelectSlim(m)))
}

func TestSelectSlimNestedScope(t *testing.T) {
	m := List{
		New("x.bn3.bn1.weight", []int{4}, true),
		New("x.bn3.weight", []int{4}, true),
	}
	assert.Equal(t, []string{"x.bn3.bn1.weight"}, Names(SelectSlim(m)))
}

func TestSelectSlimSkipsFrozenAndOtherScopes(t *testing.T) {
	m := List{
		New("layer2.bn2.weight", []int{4}, true),
		New("layer1.bn1.weight", []int{4}, false),
		New("layer3.bn3.weight", []int{4}, true),
		New("layer0.bn1.weight", []int{4}, true),
	}
	assert.Equal(t, []string{"layer2.bn2.weight", "layer0.bn1.weight"}, Names(SelectSlim(m)))
}

func TestSelectSlimUsesTagsNotNames(t *testing.T) {
	scale := &Param{Name: "features.0.scale", Shape: []int{3}, Data: make([]float64, 3), Trainable: true, Role: RoleWeight, NormScope: ScopeBN2}
	m := List{scale, New("head.weight", []int{3}, true)}
	assert.Equal(t, []*Param{scale}, SelectSlim(m))
}

func TestExtract(t *testing.T) {
	m := List{
		New("bn1.weight", []int{2}, true),
		New("bn1.bias", []int{2}, true),
		New("fc.weight", []int{2, 2}, true),
		New("fc.bias", []int{2}, true),
		New("frozen.bias", []int{2}, false),
		New("bn1.running_mean", []int{2}, true),
	}
	g := Extract(m)
	assert.Equal(t, []string{"bn1.weight", "fc.weight"}, Names(g.Weights))
	assert.Equal(t, []string{"bn1.bias", "fc.bias"}, Names(g.Biases))
	assert.Equal(t, []string{"bn1.weight"}, Names(g.Slim))
}

func TestCountAndL1Penalty(t *testing.T) {
	a := New("a.weight", []int{2, 3}, true)
	b := New("b.bias", []int{3}, true)
	copy(a.Data, []float64{1, -2, 0, 0.5, 0, -0.5})
	copy(b.Data, []float64{-1, 1, 1})

	assert.Equal(t, 9, Count(List{a, b}))
	assert.InDelta(t, 4.0, L1Penalty([]*Param{a}), 1e-12)
	assert.InDelta(t, 7.0, L1Penalty([]*Param{a, b}), 1e-12)
	assert.InDelta(t, 0.000009, Millions(9), 1e-15)
}

func TestFilterCheckpointKeepsBatchNormBias(t *testing.T) {
	bias := New("bn1.bias", []int{1}, true)
	conv := New("conv.weight", []int{1}, true)
	bias.Data[0] = 1 // A
	conv.Data[0] = 2 // B
	m := List{bias, conv}

	ckpt := StateDict{
		"bn1.bias":    {Shape: []int{1}, Data: []float64{3}}, // C
		"conv.weight": {Shape: []int{1}, Data: []float64{4}}, // D
	}

	merged := FilterCheckpoint(m, ckpt)
	require.Len(t, merged, 2)
	assert.Equal(t, []float64{1}, merged["bn1.bias"].Data)
	assert.Equal(t, []float64{4}, merged["conv.weight"].Data)
}

func TestFilterCheckpointScopes(t *testing.T) {
	m := List{
		New("layer.bn1.bias", []int{1}, true),
		New("layer.bn2.bias", []int{1}, true),
		New("layer.bn3.bias", []int{1}, true),
		New("layer.bn3.weight", []int{1}, true),
		New("fc.bias", []int{1}, true),
	}
	ckpt := make(StateDict)
	for _, p := range m {
		ckpt[p.Name] = Tensor{Shape: []int{1}, Data: []float64{9}}
	}
	ckpt["stale.weight"] = Tensor{Shape: []int{1}, Data: []float64{9}}

	merged := FilterCheckpoint(m, ckpt)
	assert.Equal(t, []string{"fc.bias", "layer.bn1.bias", "layer.bn2.bias", "layer.bn3.bias", "layer.bn3.weight"}, merged.Keys())
	assert.Equal(t, []float64{0}, merged["layer.bn1.bias"].Data)
	assert.Equal(t, []float64{0}, merged["layer.bn2.bias"].Data)
	assert.Equal(t, []float64{0}, merged["layer.bn3.bias"].Data)
	assert.Equal(t, []float64{9}, merged["layer.bn3.weight"].Data)
	assert.Equal(t, []float64{9}, merged["fc.bias"].Data)
}

func TestFilterCheckpointDoesNotAlias(t *testing.T) {
	p := New("fc.weight", []int{1}, true)
	ckpt := StateDict{"fc.weight": {Shape: []int{1}, Data: []float64{5}}}

	merged := FilterCheckpoint(List{p}, ckpt)
	merged["fc.weight"].Data[0] = 7
	assert.Equal(t, []float64{5}, ckpt["fc.weight"].Data)
	assert.Equal(t, []float64{0}, p.Data)
}

func TestStateAndLoad(t *testing.T) {
	src := List{New("fc.weight", []int{2}, true), New("fc.bias", []int{1}, true)}
	copy(src[0].Data, []float64{1, 2})
	src[1].Data[0] = 3

	sd := State(src)
	dst := List{New("fc.weight", []int{2}, true), New("fc.bias", []int{1}, true)}
	require.NoError(t, Load(dst, sd))
	assert.Equal(t, []float64{1, 2}, dst[0].Data)
	assert.Equal(t, []float64{3}, dst[1].Data)

	src[0].Data[0] = 100
	assert.Equal(t, 1.0, sd["fc.weight"].Data[0])
}

func TestLoadErrors(t *testing.T) {
	m := List{New("fc.weight", []int{2}, true)}

	err := Load(m, StateDict{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing key fc.weight")

	err = Load(m, StateDict{"fc.weight": {Shape: []int{3}, Data: make([]float64, 3)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")

	err = Load(m, StateDict{
		"fc.weight": {Shape: []int{2}, Data: make([]float64, 2)},
		"fc.bias":   {Shape: []int{1}, Data: make([]float64, 1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected key fc.bias")
}

func TestPrintTable(t *testing.T) {
	sd := StateDict{
		"fc.weight":  {Shape: []int{10, 4}},
		"bn1.weight": {Shape: []int{4}},
	}
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, sd, map[string]bool{"fc.weight": true}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "0     bn1.weight   "), lines[0])
	assert.Contains(t, lines[0], "(4,)")
	assert.True(t, strings.HasSuffix(lines[0], "float64 false"))
	assert.Contains(t, lines[1], "(10, 4)")
	assert.True(t, strings.HasSuffix(lines[1], "float64 true"))
}
