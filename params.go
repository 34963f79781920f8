package bqpipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Parameter kinds defined by the warehouse.
const (
	KindString    = "STRING"
	KindInt64     = "INT64"
	KindFloat64   = "FLOAT64"
	KindNumeric   = "NUMERIC"
	KindBool      = "BOOL"
	KindBytes     = "BYTES"
	KindTimestamp = "TIMESTAMP"
	KindDate      = "DATE"
	KindArray     = "ARRAY"
	KindStruct    = "STRUCT"
)

// Bounds of the NUMERIC type: 29 integer digits and 9 fractional digits.
// Floating-point values inside the bounds are typed NUMERIC, values
// outside fall back to FLOAT64.
const (
	NumericMin = -99999999999999999999999999999.999999999
	NumericMax = 99999999999999999999999999999.999999999
)

var (
	// ErrUnsupportedParameter is returned when a value does not map to any
	// warehouse parameter kind.
	ErrUnsupportedParameter = errors.New("unsupported parameter type")

	// ErrEmptyArrayParameter is returned for empty array parameters, whose
	// element type cannot be inferred.
	ErrEmptyArrayParameter = errors.New("cannot infer type for empty array parameter")

	// ErrMixedArrayParameter is returned when array elements do not share
	// one concrete type.
	ErrMixedArrayParameter = errors.New("array parameter elements must share one type")

	// ErrEmptyStructParameter is returned for empty struct parameters.
	ErrEmptyStructParameter = errors.New("struct parameter must not be empty")

	// ErrStructParameterKey is returned when a struct parameter has
	// non-string keys.
	ErrStructParameterKey = errors.New("struct parameter keys must be strings")

	// ErrInvalidParameters is returned when the parameter collection is
	// neither a named map nor a positional slice.
	ErrInvalidParameters = errors.New("parameters must be a named map or a positional slice")
)

// Param types a single named query parameter. Positional parameters use an
// empty name. The returned parameter carries an explicit type, never
// relying on server-side inference.
func Param(name string, value any) (bigquery.QueryParameter, error) {
	v, err := paramValue(value)
	if err != nil {
		if name == "" {
			return bigquery.QueryParameter{}, fmt.Errorf("positional parameter: %w", err)
		}
		return bigquery.QueryParameter{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	return bigquery.QueryParameter{Name: name, Value: v}, nil
}

// Params types a parameter collection: a map[string]any for named
// parameters or a []any for positional ones. A pre-built
// []bigquery.QueryParameter passes through untouched. Named parameters are
// emitted in key order so submissions are deterministic.
func Params(params any) ([]bigquery.QueryParameter, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case []bigquery.QueryParameter:
		return p, nil
	case map[string]any:
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]bigquery.QueryParameter, 0, len(p))
		for _, k := range keys {
			qp, err := Param(k, p[k])
			if err != nil {
				return nil, err
			}
			out = append(out, qp)
		}
		return out, nil
	case []any:
		out := make([]bigquery.QueryParameter, 0, len(p))
		for _, v := range p {
			qp, err := Param("", v)
			if err != nil {
				return nil, err
			}
			out = append(out, qp)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: got %T", ErrInvalidParameters, params)
}

// ParamKind returns the type kind tag of a parameter produced by Param.
func ParamKind(p bigquery.QueryParameter) string {
	v, ok := p.Value.(bigquery.QueryParameterValue)
	if !ok {
		return ""
	}
	return v.Type.TypeKind
}

func paramValue(value any) (bigquery.QueryParameterValue, error) {
	switch v := value.(type) {
	case json.Number:
		kind, val, err := numberScalar(v)
		if err != nil {
			return bigquery.QueryParameterValue{}, err
		}
		return scalarParam(kind, val), nil
	case map[string]any:
		return structValue(v)
	}
	if kind, val, ok := scalarValue(value); ok {
		return scalarParam(kind, val), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return arrayValue(rv)
	case reflect.Map:
		return mapValue(rv)
	}
	return bigquery.QueryParameterValue{}, fmt.Errorf("%w: %T", ErrUnsupportedParameter, value)
}

// scalarValue maps a Go value to its warehouse scalar kind. Integer widths
// normalize to int64; floats follow the NUMERIC bound rule.
func scalarValue(value any) (kind string, val any, ok bool) {
	switch v := value.(type) {
	case string:
		return KindString, v, true
	case int:
		return KindInt64, int64(v), true
	case int32:
		return KindInt64, int64(v), true
	case int64:
		return KindInt64, v, true
	case bool:
		return KindBool, v, true
	case []byte:
		return KindBytes, v, true
	case time.Time:
		return KindTimestamp, v, true
	case civil.Date:
		return KindDate, v, true
	case float32:
		kind, val = floatScalar(float64(v))
		return kind, val, true
	case float64:
		kind, val = floatScalar(v)
		return kind, val, true
	}
	return "", nil, false
}

// floatScalar classifies a float as NUMERIC when it fits the NUMERIC
// bounds, FLOAT64 otherwise. NUMERIC values are carried as *big.Rat, the
// representation the SDK serializes as NUMERIC.
func floatScalar(f float64) (string, any) {
	if f < NumericMin || f > NumericMax {
		return KindFloat64, f
	}
	if r := new(big.Rat).SetFloat64(f); r != nil {
		return KindNumeric, r
	}
	// NaN and infinities have no NUMERIC form.
	return KindFloat64, f
}

// numberScalar types a JSON number: integral values stay INT64, the rest
// follow the float rule.
func numberScalar(num json.Number) (string, any, error) {
	if i, err := num.Int64(); err == nil {
		return KindInt64, i, nil
	}
	f, err := num.Float64()
	if err != nil {
		return "", nil, fmt.Errorf("%w: number %q", ErrUnsupportedParameter, num.String())
	}
	kind, val := floatScalar(f)
	return kind, val, nil
}

func scalarParam(kind string, val any) bigquery.QueryParameterValue {
	return bigquery.QueryParameterValue{
		Type:  bigquery.StandardSQLDataType{TypeKind: kind},
		Value: val,
	}
}

// arrayValue types a slice as a homogeneous array parameter. The element
// kind is shared by every element; a float array is NUMERIC only when
// every element is within the NUMERIC bounds, otherwise the whole array is
// FLOAT64.
func arrayValue(rv reflect.Value) (bigquery.QueryParameterValue, error) {
	n := rv.Len()
	if n == 0 {
		return bigquery.QueryParameterValue{}, ErrEmptyArrayParameter
	}
	kinds := make([]string, n)
	vals := make([]any, n)
	for i := 0; i < n; i++ {
		elem := rv.Index(i).Interface()
		if num, ok := elem.(json.Number); ok {
			kind, val, err := numberScalar(num)
			if err != nil {
				return bigquery.QueryParameterValue{}, err
			}
			kinds[i], vals[i] = kind, val
			continue
		}
		kind, val, ok := scalarValue(elem)
		if !ok {
			return bigquery.QueryParameterValue{}, fmt.Errorf("%w: array element %T", ErrUnsupportedParameter, elem)
		}
		kinds[i], vals[i] = kind, val
	}
	kind := kinds[0]
	for _, k := range kinds[1:] {
		if k == kind {
			continue
		}
		// An out-of-bounds element demotes NUMERIC siblings; the elements
		// still share one concrete type, only the bound differs.
		if (k == KindFloat64 && kind == KindNumeric) || (k == KindNumeric && kind == KindFloat64) {
			kind = KindFloat64
			continue
		}
		return bigquery.QueryParameterValue{}, fmt.Errorf("%w: %s and %s", ErrMixedArrayParameter, kind, k)
	}
	elems := make([]bigquery.QueryParameterValue, n)
	for i, val := range vals {
		if kind == KindFloat64 {
			if r, ok := val.(*big.Rat); ok {
				f, _ := r.Float64()
				val = f
			}
		}
		elems[i] = scalarParam(kind, val)
	}
	return bigquery.QueryParameterValue{
		Type: bigquery.StandardSQLDataType{
			TypeKind:         KindArray,
			ArrayElementType: &bigquery.StandardSQLDataType{TypeKind: kind},
		},
		ArrayValue: elems,
	}, nil
}

// structValue recursively types a string-keyed map as a struct parameter.
// Fields are ordered by key.
func structValue(m map[string]any) (bigquery.QueryParameterValue, error) {
	if len(m) == 0 {
		return bigquery.QueryParameterValue{}, ErrEmptyStructParameter
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]*bigquery.StandardSQLField, 0, len(m))
	values := make(map[string]bigquery.QueryParameterValue, len(m))
	for _, k := range keys {
		v, err := paramValue(m[k])
		if err != nil {
			return bigquery.QueryParameterValue{}, fmt.Errorf("field %q: %w", k, err)
		}
		fieldType := v.Type
		fields = append(fields, &bigquery.StandardSQLField{Name: k, Type: &fieldType})
		values[k] = v
	}
	return bigquery.QueryParameterValue{
		Type: bigquery.StandardSQLDataType{
			TypeKind:   KindStruct,
			StructType: &bigquery.StandardSQLStructType{Fields: fields},
		},
		StructValue: values,
	}, nil
}

// mapValue handles maps other than map[string]any, rejecting non-string keys.
func mapValue(rv reflect.Value) (bigquery.QueryParameterValue, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return bigquery.QueryParameterValue{}, fmt.Errorf("%w: got %s keys", ErrStructParameterKey, rv.Type().Key())
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return structValue(m)
}
