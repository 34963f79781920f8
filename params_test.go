package bqpipeline

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

func paramValueOf(t *testing.T, p bigquery.QueryParameter) bigquery.QueryParameterValue {
	t.Helper()
	v, ok := p.Value.(bigquery.QueryParameterValue)
	if !ok {
		t.Fatalf("parameter value is %T, want bigquery.QueryParameterValue", p.Value)
	}
	return v
}

func TestParamScalarKinds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind string
	}{
		{"string", "abc", KindString},
		{"int", 42, KindInt64},
		{"int64", int64(42), KindInt64},
		{"bool", true, KindBool},
		{"bytes", []byte{0x01, 0x02}, KindBytes},
		{"timestamp", time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC), KindTimestamp},
		{"date", civil.Date{Year: 2026, Month: 8, Day: 25}, KindDate},
		{"float within numeric bounds", 1.0009, KindNumeric},
		{"float exceeding numeric bounds", 9999999999999999999999999999999.999999999, KindFloat64},
		{"negative float within bounds", -1.5, KindNumeric},
		{"negative float exceeding bounds", -9999999999999999999999999999999.999999999, KindFloat64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Param("x", tt.in)
			if err != nil {
				t.Fatalf("Param(x, %v) unexpected error: %v", tt.in, err)
			}
			if got := ParamKind(p); got != tt.kind {
				t.Errorf("Param(x, %v) kind = %q, want %q", tt.in, got, tt.kind)
			}
		})
	}
}

func TestParamNumericValueIsRat(t *testing.T) {
	p, err := Param("x", 1.0009)
	if err != nil {
		t.Fatal(err)
	}
	v := paramValueOf(t, p)
	r, ok := v.Value.(*big.Rat)
	if !ok {
		t.Fatalf("NUMERIC value is %T, want *big.Rat", v.Value)
	}
	if f, _ := r.Float64(); f != 1.0009 {
		t.Errorf("NUMERIC value = %v, want 1.0009", f)
	}
}

func TestParamArrays(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		elemKind string
	}{
		{"array of strings", []any{"abc"}, KindString},
		{"array of ints", []any{1, 2}, KindInt64},
		{"typed string slice", []string{"a", "b"}, KindString},
		{"typed int64 slice", []int64{1, 2, 3}, KindInt64},
		{"floats within bounds", []float64{1.5, 2.5}, KindNumeric},
		{"one float out of bounds demotes the array", []float64{1.5, 9999999999999999999999999999999.999999999}, KindFloat64},
		{"json numbers", []any{json.Number("1"), json.Number("2")}, KindInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Param("x", tt.in)
			if err != nil {
				t.Fatalf("Param(x, %v) unexpected error: %v", tt.in, err)
			}
			v := paramValueOf(t, p)
			if v.Type.TypeKind != KindArray {
				t.Fatalf("kind = %q, want ARRAY", v.Type.TypeKind)
			}
			if v.Type.ArrayElementType == nil || v.Type.ArrayElementType.TypeKind != tt.elemKind {
				t.Errorf("element kind = %v, want %q", v.Type.ArrayElementType, tt.elemKind)
			}
			if len(v.ArrayValue) == 0 {
				t.Error("ArrayValue is empty")
			}
		})
	}
}

func TestParamArrayErrors(t *testing.T) {
	if _, err := Param("x", []any{}); !errors.Is(err, ErrEmptyArrayParameter) {
		t.Errorf("empty array error = %v, want %v", err, ErrEmptyArrayParameter)
	}
	if _, err := Param("x", []any{1, "a"}); !errors.Is(err, ErrMixedArrayParameter) {
		t.Errorf("mixed array error = %v, want %v", err, ErrMixedArrayParameter)
	}
	if _, err := Param("x", []any{map[string]any{"a": 1}}); !errors.Is(err, ErrUnsupportedParameter) {
		t.Errorf("array of structs error = %v, want %v", err, ErrUnsupportedParameter)
	}
}

func TestParamStruct(t *testing.T) {
	p, err := Param("s", map[string]any{"a": "abc"})
	if err != nil {
		t.Fatal(err)
	}
	v := paramValueOf(t, p)
	if v.Type.TypeKind != KindStruct {
		t.Fatalf("kind = %q, want STRUCT", v.Type.TypeKind)
	}
	if v.Type.StructType == nil || len(v.Type.StructType.Fields) != 1 {
		t.Fatalf("StructType = %v, want one field", v.Type.StructType)
	}
	field := v.Type.StructType.Fields[0]
	if field.Name != "a" || field.Type == nil || field.Type.TypeKind != KindString {
		t.Errorf("field = %v %v, want a STRING", field.Name, field.Type)
	}
	if v.StructValue["a"].Value != "abc" {
		t.Errorf("StructValue[a] = %v, want abc", v.StructValue["a"].Value)
	}
}

func TestParamStructNested(t *testing.T) {
	p, err := Param("s", map[string]any{
		"name":  "abc",
		"inner": map[string]any{"count": 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	v := paramValueOf(t, p)
	inner, ok := v.StructValue["inner"]
	if !ok {
		t.Fatal("missing inner field")
	}
	if inner.Type.TypeKind != KindStruct {
		t.Errorf("inner kind = %q, want STRUCT", inner.Type.TypeKind)
	}
	if inner.StructValue["count"].Type.TypeKind != KindInt64 {
		t.Errorf("inner count kind = %q, want INT64", inner.StructValue["count"].Type.TypeKind)
	}
}

func TestParamStructErrors(t *testing.T) {
	if _, err := Param("s", map[string]any{}); !errors.Is(err, ErrEmptyStructParameter) {
		t.Errorf("empty struct error = %v, want %v", err, ErrEmptyStructParameter)
	}
	if _, err := Param("s", map[int]any{1: "a"}); !errors.Is(err, ErrStructParameterKey) {
		t.Errorf("int-keyed map error = %v, want %v", err, ErrStructParameterKey)
	}
	if _, err := Param("s", map[string]int{"a": 1}); err != nil {
		t.Errorf("string-keyed typed map unexpected error: %v", err)
	}
}

func TestParamUnsupported(t *testing.T) {
	if _, err := Param("x", struct{}{}); !errors.Is(err, ErrUnsupportedParameter) {
		t.Errorf("struct literal error = %v, want %v", err, ErrUnsupportedParameter)
	}
	if _, err := Param("x", make(chan int)); !errors.Is(err, ErrUnsupportedParameter) {
		t.Errorf("channel error = %v, want %v", err, ErrUnsupportedParameter)
	}
}

func TestParamJSONNumber(t *testing.T) {
	p, err := Param("n", json.Number("42"))
	if err != nil {
		t.Fatal(err)
	}
	if got := ParamKind(p); got != KindInt64 {
		t.Errorf("json.Number(42) kind = %q, want INT64", got)
	}

	p, err = Param("n", json.Number("1.5"))
	if err != nil {
		t.Fatal(err)
	}
	if got := ParamKind(p); got != KindNumeric {
		t.Errorf("json.Number(1.5) kind = %q, want NUMERIC", got)
	}
}

func TestParamsNamed(t *testing.T) {
	params, err := Params(map[string]any{"b": 1, "a": "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 2 {
		t.Fatalf("len = %d, want 2", len(params))
	}
	// Named parameters are emitted in key order.
	if params[0].Name != "a" || params[1].Name != "b" {
		t.Errorf("names = %q, %q, want a, b", params[0].Name, params[1].Name)
	}
	if got := ParamKind(params[0]); got != KindString {
		t.Errorf("a kind = %q, want STRING", got)
	}
	if got := ParamKind(params[1]); got != KindInt64 {
		t.Errorf("b kind = %q, want INT64", got)
	}
}

func TestParamsPositional(t *testing.T) {
	params, err := Params([]any{"abc", 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 2 {
		t.Fatalf("len = %d, want 2", len(params))
	}
	for i, p := range params {
		if p.Name != "" {
			t.Errorf("params[%d].Name = %q, want empty", i, p.Name)
		}
	}
}

func TestParamsPassthrough(t *testing.T) {
	in := []bigquery.QueryParameter{{Name: "x", Value: 1}}
	params, err := Params(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 1 || params[0].Name != "x" {
		t.Errorf("passthrough = %v, want input unchanged", params)
	}
}

func TestParamsNil(t *testing.T) {
	params, err := Params(nil)
	if err != nil {
		t.Fatal(err)
	}
	if params != nil {
		t.Errorf("Params(nil) = %v, want nil", params)
	}
}

func TestParamsInvalidCollection(t *testing.T) {
	if _, err := Params(5); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("Params(5) error = %v, want %v", err, ErrInvalidParameters)
	}
	if _, err := Params("abc"); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("Params(abc) error = %v, want %v", err, ErrInvalidParameters)
	}
}

func TestParamsInvalidValueAborts(t *testing.T) {
	if _, err := Params(map[string]any{"a": []any{}}); !errors.Is(err, ErrEmptyArrayParameter) {
		t.Errorf("error = %v, want %v", err, ErrEmptyArrayParameter)
	}
}
