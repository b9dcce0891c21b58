package artifact

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/charangentem-coder/rental-price-predictor/features"
	"github.com/charangentem-coder/rental-price-predictor/forest"
)

// Payload layout, all integers big-endian:
//
//	schema       u32 n, n strings (numeric columns)
//	             u32 n, n x (string name, u32 m, m strings)
//	transformer  u32 n, n x (string column, f64 mean, f64 std)
//	             u32 n, n x (string name, u32 m, m strings)
//	estimator    6 x i64 params (trees, depth, split, leaf, features, seed)
//	             i64 feature count, u32 trees
//	             per tree: u32 nodes, per node i64 feature, f64 threshold,
//	             i64 left, i64 right, f64 value
//
// Strings are a u32 byte length followed by the bytes; floats are their
// IEEE 754 bits.

const nodeSize = 5 * 8

type encoder struct {
	b []byte
}

func (e *encoder) u32(v uint32)  { e.b = binary.BigEndian.AppendUint32(e.b, v) }
func (e *encoder) i64(v int64)   { e.b = binary.BigEndian.AppendUint64(e.b, uint64(v)) }
func (e *encoder) f64(v float64) { e.b = binary.BigEndian.AppendUint64(e.b, math.Float64bits(v)) }
func (e *encoder) count(n int)   { e.u32(uint32(n)) }

func (e *encoder) str(s string) {
	e.count(len(s))
	e.b = append(e.b, s...)
}

func (e *encoder) categorical(cols []features.CategoricalColumn) {
	e.count(len(cols))
	for _, c := range cols {
		e.str(c.Name)
		e.count(len(c.Values))
		for _, v := range c.Values {
			e.str(v)
		}
	}
}

func encodePayload(a *ModelArtifact) []byte {
	e := &encoder{}

	e.count(len(a.Schema.Numeric))
	for _, col := range a.Schema.Numeric {
		e.str(col)
	}
	e.categorical(a.Schema.Categorical)

	e.count(len(a.Transformer.Numeric))
	for _, n := range a.Transformer.Numeric {
		e.str(n.Column)
		e.f64(n.Mean)
		e.f64(n.StdDev)
	}
	e.categorical(a.Transformer.Categorical)

	f := &a.Estimator
	for _, v := range []int{f.Params.NTrees, f.Params.MaxDepth, f.Params.MinSamplesSplit, f.Params.MinSamplesLeaf, f.Params.MaxFeatures} {
		e.i64(int64(v))
	}
	e.i64(f.Params.Seed)
	e.i64(int64(f.NFeatures))
	e.count(len(f.Trees))
	for _, t := range f.Trees {
		e.count(len(t.Nodes))
		for _, n := range t.Nodes {
			e.i64(int64(n.Feature))
			e.f64(n.Threshold)
			e.i64(int64(n.Left))
			e.i64(int64(n.Right))
			e.f64(n.Value)
		}
	}
	return e.b
}

type decoder struct {
	b   []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n > len(d.b) {
		d.err = fmt.Errorf("need %d bytes, %d left", n, len(d.b))
		return nil
	}
	p := d.b[:n]
	d.b = d.b[n:]
	return p
}

func (d *decoder) u32() uint32 {
	p := d.take(4)
	if d.err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

func (d *decoder) i64() int64 {
	p := d.take(8)
	if d.err != nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(p))
}

func (d *decoder) integer() int { return int(d.i64()) }

func (d *decoder) f64() float64 { return math.Float64frombits(uint64(d.i64())) }

func (d *decoder) str() string {
	return string(d.take(int(d.u32())))
}

// count reads a length prefix, rejecting counts the remaining bytes cannot
// hold when every element takes at least minSize bytes.
func (d *decoder) count(minSize int) int {
	n := int(d.u32())
	if d.err == nil && n*minSize > len(d.b) {
		d.err = fmt.Errorf("count %d does not fit in %d bytes", n, len(d.b))
	}
	if d.err != nil {
		return 0
	}
	return n
}

func (d *decoder) strings() []string {
	n := d.count(4)
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = d.str()
	}
	return out
}

func (d *decoder) categorical() []features.CategoricalColumn {
	n := d.count(8)
	if n == 0 {
		return nil
	}
	out := make([]features.CategoricalColumn, n)
	for i := range out {
		out[i].Name = d.str()
		out[i].Values = d.strings()
	}
	return out
}

func decodePayload(payload []byte) (*ModelArtifact, error) {
	d := &decoder{b: payload}
	a := &ModelArtifact{}

	a.Schema.Numeric = d.strings()
	a.Schema.Categorical = d.categorical()

	if n := d.count(4 + 16); n > 0 {
		a.Transformer.Numeric = make([]features.NumericStat, n)
		for i := range a.Transformer.Numeric {
			st := &a.Transformer.Numeric[i]
			st.Column = d.str()
			st.Mean = d.f64()
			st.StdDev = d.f64()
		}
	}
	a.Transformer.Categorical = d.categorical()

	f := &a.Estimator
	f.Params = forest.Params{
		NTrees:          d.integer(),
		MaxDepth:        d.integer(),
		MinSamplesSplit: d.integer(),
		MinSamplesLeaf:  d.integer(),
		MaxFeatures:     d.integer(),
		Seed:            d.i64(),
	}
	f.NFeatures = d.integer()
	if n := d.count(4); n > 0 {
		f.Trees = make([]forest.Tree, n)
		for i := range f.Trees {
			m := d.count(nodeSize)
			if m == 0 {
				continue
			}
			nodes := make([]forest.Node, m)
			for j := range nodes {
				nodes[j] = forest.Node{
					Feature:   d.integer(),
					Threshold: d.f64(),
					Left:      d.integer(),
					Right:     d.integer(),
					Value:     d.f64(),
				}
			}
			f.Trees[i].Nodes = nodes
		}
	}

	if d.err != nil {
		return nil, d.err
	}
	if len(d.b) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(d.b))
	}
	return a, nil
}
