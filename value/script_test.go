package value

import (
	"context"
	"math"
	"testing"
)

func TestRunScriptLiterals(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()

	v, err := r.RunScript(ctx, `{"a":[1,2],"b":"x"}`)
	if err != nil {
		t.Fatal(err)
	}
	obj := v.(*Object)
	a, _ := obj.Get(ctx, StringKey("a"))
	if arr, ok := a.(*Object); !ok || !arr.IsArray() || arr.Length() != 2 {
		t.Fatalf("a = %v", Describe(a))
	}

	tests := []struct {
		src  string
		want Value
	}{
		{"undefined", Undefined},
		{"null;", Null},
		{"42", Number(42)},
		{" 'hi' ", String("hi")},
		{"true", True},
	}
	for _, tt := range tests {
		got, err := r.RunScript(ctx, tt.src)
		if err != nil {
			t.Fatalf("%q: %v", tt.src, err)
		}
		if !SameValue(got, tt.want) {
			t.Errorf("%q = %s, want %s", tt.src, Describe(got), Describe(tt.want))
		}
	}

	nan, _ := r.RunScript(ctx, "NaN")
	if n, ok := nan.(Number); !ok || !math.IsNaN(float64(n)) {
		t.Fatalf("NaN = %v", nan)
	}
	big, _ := r.RunScript(ctx, "12345678901234567890n")
	if b, ok := big.(*BigInt); !ok || b.String() != "12345678901234567890" {
		t.Fatalf("bigint = %v", big)
	}
}

func TestRunScriptGlobals(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	v, err := r.RunScript(ctx, "globalThis.Object.prototype")
	if err != nil {
		t.Fatal(err)
	}
	if v != Value(r.ObjectPrototype) {
		t.Fatalf("got %s", Describe(v))
	}

	_, err = r.RunScript(ctx, "missing")
	thrown, ok := Thrown(err)
	if !ok || Describe(thrown) != "ReferenceError: missing is not defined" {
		t.Fatalf("err = %v", err)
	}

	_, err = r.RunScript(ctx, "1 +")
	thrown, ok = Thrown(err)
	if !ok {
		t.Fatalf("err = %v", err)
	}
	if ok, _ := r.InstanceOf(ctx, thrown, r.ErrorConstructor(SyntaxError)); !ok {
		t.Fatalf("expected SyntaxError, got %s", Describe(thrown))
	}
}

func TestWithEvaluator(t *testing.T) {
	r := NewRealm(WithEvaluator(EvaluatorFunc(func(_ context.Context, _ *Realm, src string) (Value, error) {
		return String("eval:" + src), nil
	})))
	v, err := r.RunScript(context.Background(), "x")
	if err != nil || v != String("eval:x") {
		t.Fatalf("RunScript = %v, %v", v, err)
	}
}

func TestToJSON(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	o := r.NewObject()
	o.CreateDataProperty(StringKey("a"), Number(1))
	o.CreateDataProperty(StringKey("b"), String("x\"y"))
	o.CreateDataProperty(StringKey("c"), Undefined)
	o.CreateDataProperty(StringKey("d"), r.NewArray(Number(1), Undefined))
	o.CreateDataProperty(StringKey("e.f"), True)

	text, ok, err := r.ToJSON(ctx, o)
	if err != nil || !ok {
		t.Fatalf("ToJSON = %v, %v", ok, err)
	}
	want := `{"a":1,"b":"x\"y","d":[1,null],"e.f":true}`
	if text != want {
		t.Fatalf("ToJSON = %s, want %s", text, want)
	}

	o.CreateDataProperty(StringKey("self"), o)
	if _, _, err := r.ToJSON(ctx, o); err == nil {
		t.Fatal("cycles must throw")
	}
	if _, ok, _ := r.ToJSON(ctx, Undefined); ok {
		t.Fatal("undefined has no JSON form")
	}
}

func TestQuoteJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", `""`},
		{"plain", `"plain"`},
		{"a\nb", `"a\nb"`},
		{`q"b\`, `"q\"b\\"`},
	}
	for _, tt := range tests {
		got, err := quoteJSON(tt.in)
		if err != nil {
			t.Fatalf("quoteJSON(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("quoteJSON(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	ctx := context.Background()
	r := NewRealm()
	text, ok, err := r.ToJSON(ctx, String("tab\there"))
	if err != nil || !ok || text != `"tab\there"` {
		t.Errorf("ToJSON(string) = %s, %v, %v", text, ok, err)
	}
}

func TestGoConversion(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	v := r.FromGo(map[string]any{"n": 1, "list": []any{"a", true, nil}})
	out, err := ToGo(ctx, v)
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]any)
	if m["n"] != float64(1) {
		t.Fatalf("n = %v", m["n"])
	}
	list := m["list"].([]any)
	if len(list) != 3 || list[0] != "a" || list[1] != true || list[2] != nil {
		t.Fatalf("list = %v", list)
	}
}

func TestInspect(t *testing.T) {
	r := NewRealm()
	o := r.NewObject()
	o.CreateDataProperty(StringKey("a"), Number(1))
	o.CreateDataProperty(StringKey("s"), String("x"))
	o.CreateDataProperty(StringKey("arr"), r.NewArray(Number(1), Number(2)))
	if got := Inspect(o); got != "{ a: 1, s: 'x', arr: [ 1, 2 ] }" {
		t.Fatalf("Inspect = %s", got)
	}
	if got := Inspect(String("top")); got != "top" {
		t.Fatalf("Inspect(string) = %s", got)
	}
}
