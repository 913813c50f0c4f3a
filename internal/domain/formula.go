package domain

import (
	"fmt"
	"math"
	"sort"
)

// Op is an expression node kind.
type Op string

const (
	OpBand          Op = "band"
	OpConst         Op = "const"
	OpAdd           Op = "add"
	OpSub           Op = "sub"
	OpMul           Op = "mul"
	OpDiv           Op = "div"
	OpNormDiff      Op = "normalized_difference"
	OpRelativeDelta Op = "relative_delta"
)

// RelativeDeltaEpsilon guards the denominator of a relative change.
const RelativeDeltaEpsilon = 1e-6

// Stack band names used by change formulas.
const (
	StackCurrent  = "current"
	StackHistoric = "historic"
)

// Expr is a typed per-pixel expression tree. It serializes as nested JSON
// nodes so remote platforms can evaluate it without parsing text.
type Expr struct {
	Op    Op      `json:"op"`
	Band  string  `json:"band,omitempty"`
	Value float64 `json:"value,omitempty"`
	Args  []Expr  `json:"args,omitempty"`
}

func BandRef(name string) Expr { return Expr{Op: OpBand, Band: name} }
func Const(v float64) Expr { return Expr{Op: OpConst, Value: v} }
func Add(a, b Expr) Expr { return Expr{Op: OpAdd, Args: []Expr{a, b}} }
func Sub(a, b Expr) Expr { return Expr{Op: OpSub, Args: []Expr{a, b}} }
func Mul(a, b Expr) Expr { return Expr{Op: OpMul, Args: []Expr{a, b}} }
func Div(a, b Expr) Expr { return Expr{Op: OpDiv, Args: []Expr{a, b}} }
func NormDiff(a, b Expr) Expr { return Expr{Op: OpNormDiff, Args: []Expr{a, b}} }
func RelDelta(cur, hist Expr) Expr { return Expr{Op: OpRelativeDelta, Args: []Expr{cur, hist}} }

// Validate checks node arity and operator names.
func (e Expr) Validate() error {
	switch e.Op {
	case OpBand:
		if e.Band == "" {
			return fmt.Errorf("band node without band name")
		}
		if len(e.Args) != 0 {
			return fmt.Errorf("band node %q has arguments", e.Band)
		}
	case OpConst:
		if len(e.Args) != 0 {
			return fmt.Errorf("const node has arguments")
		}
	case OpAdd, OpSub, OpMul, OpDiv, OpNormDiff, OpRelativeDelta:
		if len(e.Args) != 2 {
			return fmt.Errorf("%s node needs 2 arguments, got %d", e.Op, len(e.Args))
		}
		for _, a := range e.Args {
			if err := a.Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown expression op %q", e.Op)
	}
	return nil
}

// Eval evaluates the expression for one pixel. lookup returns a band value
// and whether that pixel is valid. The result is invalid when any input is
// invalid, a denominator is zero, or the value is not finite.
func (e Expr) Eval(lookup func(band string) (float64, bool)) (float64, bool) {
	var v float64
	switch e.Op {
	case OpBand:
		x, ok := lookup(e.Band)
		if !ok {
			return 0, false
		}
		v = x
	case OpConst:
		v = e.Value
	default:
		if len(e.Args) != 2 {
			return 0, false
		}
		a, ok := e.Args[0].Eval(lookup)
		if !ok {
			return 0, false
		}
		b, ok := e.Args[1].Eval(lookup)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case OpAdd:
			v = a + b
		case OpSub:
			v = a - b
		case OpMul:
			v = a * b
		case OpDiv:
			if b == 0 {
				return 0, false
			}
			v = a / b
		case OpNormDiff:
			if a+b == 0 {
				return 0, false
			}
			v = (a - b) / (a + b)
		case OpRelativeDelta:
			v = (a - b) / (b + RelativeDeltaEpsilon)
		default:
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Bands returns the distinct band names referenced by the expression, sorted.
func (e Expr) Bands() []string {
	set := map[string]struct{}{}
	e.collect(set)
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

func (e Expr) collect(set map[string]struct{}) {
	if e.Op == OpBand {
		set[e.Band] = struct{}{}
		return
	}
	for _, a := range e.Args {
		a.collect(set)
	}
}

// Rebind returns a copy with band names rewritten through rename. Names that
// rename does not know are kept.
func (e Expr) Rebind(rename func(string) (string, bool)) Expr {
	out := e
	if e.Op == OpBand {
		if n, ok := rename(e.Band); ok {
			out.Band = n
		}
		return out
	}
	if len(e.Args) > 0 {
		out.Args = make([]Expr, len(e.Args))
		for i, a := range e.Args {
			out.Args[i] = a.Rebind(rename)
		}
	}
	return out
}

// IndexFormula is a named expression producing one derived band.
type IndexFormula struct {
	Name string `json:"name"`
	Expr Expr   `json:"expr"`
}

// Bind rewrites logical band references to the platform ids of a source.
func (f IndexFormula) Bind(bands BandSet) (IndexFormula, error) {
	for _, b := range f.Expr.Bands() {
		if Band(b).Valid() {
			if _, ok := bands.ID(Band(b)); !ok {
				return IndexFormula{}, fmt.Errorf("bind formula %s: band set missing %s", f.Name, b)
			}
		}
	}
	return IndexFormula{
		Name: f.Name,
		Expr: f.Expr.Rebind(func(name string) (string, bool) {
			return bands.ID(Band(name))
		}),
	}, nil
}

// EvalScalar evaluates the formula on named scalar inputs.
func (f IndexFormula) EvalScalar(inputs map[string]float64) Value {
	v, ok := f.Expr.Eval(func(b string) (float64, bool) {
		x, ok := inputs[b]
		return x, ok
	})
	if !ok {
		return Unavailable
	}
	return Measured(v)
}

// EVIConstants are the enhanced vegetation index coefficients.
type EVIConstants struct {
	G  float64 `json:"G" yaml:"g"`
	L  float64 `json:"L" yaml:"l"`
	C1 float64 `json:"C1" yaml:"c1"`
	C2 float64 `json:"C2" yaml:"c2"`
}

// DefaultEVIConstants are the MODIS EVI coefficients.
var DefaultEVIConstants = EVIConstants{G: 2.5, L: 1, C1: 6, C2: 7.5}

// Kelvin offset for converting thermal bands to Celsius.
const KelvinOffset = 273.15

// DefaultLSTGain is the MOD11A2 LST_Day_1km scale factor.
const DefaultLSTGain = 0.02

func NDVI() IndexFormula {
	return IndexFormula{Name: "NDVI", Expr: NormDiff(BandRef(string(BandNIR)), BandRef(string(BandRed)))}
}

func FloralNDSI() IndexFormula {
	return IndexFormula{Name: "NDSI_floral", Expr: NormDiff(BandRef(string(BandGreen)), BandRef(string(BandRed)))}
}

// EVI = G·(NIR − RED) / (NIR + C1·RED − C2·BLUE + L).
func EVI(c EVIConstants) IndexFormula {
	nir, red, blue := BandRef(string(BandNIR)), BandRef(string(BandRed)), BandRef(string(BandBlue))
	num := Mul(Const(c.G), Sub(nir, red))
	den := Add(Sub(Add(nir, Mul(Const(c.C1), red)), Mul(Const(c.C2), blue)), Const(c.L))
	return IndexFormula{Name: "EVI", Expr: Div(num, den)}
}

// LSTCelsius converts a scaled Kelvin thermal band to degrees Celsius.
func LSTCelsius(gain float64) IndexFormula {
	return IndexFormula{Name: "LST", Expr: Sub(Mul(BandRef(string(BandThermal)), Const(gain)), Const(KelvinOffset))}
}

// PrecipitationTotal passes the summed precipitation band through unchanged.
func PrecipitationTotal() IndexFormula {
	return IndexFormula{Name: "precipitation", Expr: BandRef(string(BandPrecipitation))}
}

// Delta is current − historic over a two-band stack.
func Delta() IndexFormula {
	return IndexFormula{Name: "delta", Expr: Sub(BandRef(StackCurrent), BandRef(StackHistoric))}
}

// RelativeDelta is (current − historic) / (historic + ε) over a two-band stack.
func RelativeDelta() IndexFormula {
	return IndexFormula{Name: "relative_delta", Expr: RelDelta(BandRef(StackCurrent), BandRef(StackHistoric))}
}

// Formulas is the lookup table used by the catalog to name formulas.
func Formulas(evi EVIConstants, lstGain float64) map[string]IndexFormula {
	out := map[string]IndexFormula{}
	for _, f := range []IndexFormula{NDVI(), FloralNDSI(), EVI(evi), LSTCelsius(lstGain), PrecipitationTotal()} {
		out[f.Name] = f
	}
	return out
}
