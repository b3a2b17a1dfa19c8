package jsonpath

import (
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// numericCtx is the arithmetic context for path arithmetic.  Rounding is
// half-up to match SQL numeric behavior.
var numericCtx = func() apd.Context {
	c := apd.BaseContext.WithPrecision(38)
	c.Rounding = apd.RoundHalfUp
	return *c
}()

// typmodCtx has enough precision for .decimal(p, s) with p up to 1000.
var typmodCtx = func() apd.Context {
	c := apd.BaseContext.WithPrecision(2005)
	c.Rounding = apd.RoundHalfUp
	return *c
}()

type binaryNumericFunc func(a, b *apd.Decimal) (*apd.Decimal, error)

func numericAdd(a, b *apd.Decimal) (*apd.Decimal, error) {
	res := new(apd.Decimal)
	if _, err := numericCtx.Add(res, a, b); err != nil {
		return nil, &numericOpError{err}
	}
	return res, nil
}

func numericSub(a, b *apd.Decimal) (*apd.Decimal, error) {
	res := new(apd.Decimal)
	if _, err := numericCtx.Sub(res, a, b); err != nil {
		return nil, &numericOpError{err}
	}
	return res, nil
}

func numericMul(a, b *apd.Decimal) (*apd.Decimal, error) {
	res := new(apd.Decimal)
	if _, err := numericCtx.Mul(res, a, b); err != nil {
		return nil, &numericOpError{err}
	}
	return res, nil
}

func numericDiv(a, b *apd.Decimal) (*apd.Decimal, error) {
	res := new(apd.Decimal)
	if _, err := numericCtx.Quo(res, a, b); err != nil {
		return nil, &numericOpError{err}
	}
	// Quo fills the quotient to the context precision; drop the trailing
	// zeros, but keep the exponent no greater than that of an exact quotient.
	ideal := a.Exponent - b.Exponent
	res.Reduce(res)
	if res.Exponent > ideal {
		trimmed := new(apd.Decimal)
		if _, err := numericCtx.Quantize(trimmed, res, ideal); err == nil {
			res = trimmed
		}
	}
	return res, nil
}

func numericMod(a, b *apd.Decimal) (*apd.Decimal, error) {
	res := new(apd.Decimal)
	if _, err := numericCtx.Rem(res, a, b); err != nil {
		return nil, &numericOpError{err}
	}
	return res, nil
}

func numericUMinus(d *apd.Decimal) *apd.Decimal {
	return new(apd.Decimal).Neg(d)
}

func numericAbs(d *apd.Decimal) (*apd.Decimal, error) {
	return new(apd.Decimal).Abs(d), nil
}

func numericFloor(d *apd.Decimal) (*apd.Decimal, error) {
	res := new(apd.Decimal)
	if _, err := numericCtx.Floor(res, d); err != nil {
		return nil, &numericOpError{err}
	}
	return res, nil
}

func numericCeil(d *apd.Decimal) (*apd.Decimal, error) {
	res := new(apd.Decimal)
	if _, err := numericCtx.Ceil(res, d); err != nil {
		return nil, &numericOpError{err}
	}
	return res, nil
}

// numericTruncToInt32 truncates toward zero and converts to int32.  Used for
// array subscript evaluation.
func numericTruncToInt32(d *apd.Decimal) (int32, bool) {
	integ, frac := new(apd.Decimal), new(apd.Decimal)
	d.Modf(integ, frac)
	i, err := integ.Int64()
	if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int32(i), true
}

// numericRoundToInt64 rounds half-up to an integer and converts.
func numericRoundToInt64(d *apd.Decimal) (int64, bool) {
	if d.Form != apd.Finite {
		return 0, false
	}
	res := new(apd.Decimal)
	if _, err := typmodCtx.Quantize(res, d, 0); err != nil {
		return 0, false
	}
	i, err := res.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

func numericRoundToInt32(d *apd.Decimal) (int32, bool) {
	i, ok := numericRoundToInt64(d)
	if !ok || i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int32(i), true
}

// numericFloat64 converts to an IEEE double.
func numericFloat64(d *apd.Decimal) (float64, bool) {
	f, err := d.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

func numericFromFloat64(f float64) *apd.Decimal {
	d, _, err := apd.NewFromString(strconv.FormatFloat(f, 'g', -1, 64))
	if err != nil {
		// FormatFloat of a finite float always parses.
		panic("jsonpath: " + err.Error())
	}
	return d
}

func parseNumeric(s string) (*apd.Decimal, bool) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, false
	}
	return d, true
}

func isNaNOrInf(d *apd.Decimal) bool {
	return d.Form != apd.Finite
}

// numericWithTypmod rounds d to the given scale and checks that the result
// fits in the given precision, mirroring SQL numeric(p, s) coercion.
func numericWithTypmod(d *apd.Decimal, precision, scale int) (*apd.Decimal, error) {
	res := new(apd.Decimal)
	if _, err := typmodCtx.Quantize(res, d, int32(-scale)); err != nil {
		return nil, &numericOpError{err}
	}
	if !res.IsZero() && res.NumDigits() > int64(precision) {
		return nil, &numericOpError{errNumericFieldOverflow(precision, scale)}
	}
	return res, nil
}

type numericFieldOverflow struct {
	precision, scale int
}

func errNumericFieldOverflow(p, s int) error {
	return &numericFieldOverflow{p, s}
}

func (err *numericFieldOverflow) Error() string {
	return "numeric field overflow: a field with precision " +
		strconv.Itoa(err.precision) + ", scale " + strconv.Itoa(err.scale) +
		" must round to an absolute value less than 10^" +
		strconv.Itoa(err.precision-err.scale)
}
