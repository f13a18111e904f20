package codec

import (
	stderrors "errors"
	"math"
	"math/big"
	"testing"

	"github.com/wippyai/wasm-napi/errors"
)

func newView() (*View, *SliceMemory) {
	mem := NewSliceMemory(1)
	return New(mem), mem
}

func TestView_Scalars(t *testing.T) {
	v, mem := newView()

	if err := v.PutU32(8, 0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	if mem.Buf[8] != 0xEF || mem.Buf[11] != 0xDE {
		t.Errorf("PutU32 not little-endian: % x", mem.Buf[8:12])
	}
	if got, _ := v.U32(8); got != 0xDEADBEEF {
		t.Errorf("U32 = %#x, want 0xdeadbeef", got)
	}
	if err := v.PutI32(16, -2); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.I32(16); got != -2 {
		t.Errorf("I32 = %d, want -2", got)
	}
	if err := v.PutI64(24, math.MinInt64); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.I64(24); got != math.MinInt64 {
		t.Errorf("I64 = %d", got)
	}
	if err := v.PutF64(32, -0.5); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.F64(32); got != -0.5 {
		t.Errorf("F64 = %v", got)
	}
	if err := v.PutBool(40, true); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.U8(40); got != 1 {
		t.Errorf("PutBool wrote %d", got)
	}
}

func TestView_OutOfBounds(t *testing.T) {
	v, _ := newView()
	_, err := v.U32(PageSize - 2)
	if err == nil {
		t.Fatal("expected out of bounds error")
	}
	want := &errors.Error{Phase: errors.PhaseCodec, Kind: errors.KindOutOfBounds}
	if !stderrors.Is(err, want) {
		t.Errorf("err = %v, want codec out_of_bounds", err)
	}
	if err := v.PutU64(math.MaxUint32-3, 1); err == nil {
		t.Error("expected wraparound write to fail")
	}
}

func TestView_RefreshAfterGrow(t *testing.T) {
	v, mem := newView()
	if v.Size() != PageSize {
		t.Fatalf("Size = %d", v.Size())
	}
	mem.Grow(1)

	// the stale size is re-validated on demand
	if err := v.PutU32(PageSize+4, 7); err != nil {
		t.Fatalf("write into grown memory: %v", err)
	}
	if v.Size() != 2*PageSize {
		t.Errorf("Size after refresh = %d", v.Size())
	}
	if v.Refresh() {
		t.Error("Refresh reported a change with nothing new")
	}
}

func TestView_ReadString(t *testing.T) {
	v, mem := newView()
	copy(mem.Buf[100:], "hello\x00world")
	copy(mem.Buf[200:], []byte{'h', 0, 0xe9, 0, 0x3d, 0xd8, 0x00, 0xde, 0, 0})
	copy(mem.Buf[300:], []byte{'c', 0xe9, 0xff, 0})

	tests := []struct {
		name   string
		ptr    uint32
		length uint32
		enc    Encoding
		want   string
	}{
		{"utf8 explicit", 100, 11, UTF8, "hello\x00world"},
		{"utf8 auto", 100, AutoLength, UTF8, "hello"},
		{"utf8 empty", 100, 0, UTF8, ""},
		{"utf16 explicit", 200, 4, UTF16, "hé😀"},
		{"utf16 auto", 200, AutoLength, UTF16, "hé😀"},
		{"latin1", 300, AutoLength, Latin1, "céÿ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ReadString(tt.ptr, tt.length, tt.enc)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ReadString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestView_ReadStringInvalidUTF8(t *testing.T) {
	v, mem := newView()
	copy(mem.Buf[10:], []byte{'a', 0xff, 'b'})
	got, err := v.ReadString(10, 3, UTF8)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a�b" {
		t.Errorf("ReadString = %q", got)
	}
}

func TestView_ReadStringUnterminated(t *testing.T) {
	v, mem := newView()
	for i := range mem.Buf {
		mem.Buf[i] = 'x'
	}
	if _, err := v.ReadCString(PageSize - 4); err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestView_WriteStringBudget(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		enc    Encoding
		budget uint32
		want   []byte
	}{
		{"fits", "abc", UTF8, 10, []byte("abc")},
		{"truncated ascii", "abcdef", UTF8, 4, []byte("abcd")},
		{"no split utf8", "aé", UTF8, 2, []byte("a")},
		{"no split emoji", "😀", UTF8, 3, nil},
		{"utf16 units", "ab", UTF16, 3, []byte{'a', 0}},
		{"no split surrogate", "a😀", UTF16, 4, []byte{'a', 0}},
		{"latin1", "café", Latin1, 10, []byte{'c', 'a', 'f', 0xe9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, mem := newView()
			for i := 0; i < 16; i++ {
				mem.Buf[i] = 0xAA
			}
			n, err := v.WriteString(0, tt.budget, tt.s, tt.enc)
			if err != nil {
				t.Fatal(err)
			}
			if int(n) != len(tt.want) {
				t.Fatalf("written = %d, want %d", n, len(tt.want))
			}
			if string(mem.Buf[:n]) != string(tt.want) {
				t.Errorf("bytes = % x, want % x", mem.Buf[:n], tt.want)
			}
			for i := n; i < 16; i++ {
				if mem.Buf[i] != 0xAA {
					t.Fatalf("byte %d clobbered past written region", i)
				}
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{UTF8, UTF16, Latin1} {
		s := "Zürich"
		v, _ := newView()
		n, err := v.WriteString(64, 64, s, enc)
		if err != nil {
			t.Fatal(err)
		}
		got, err := v.ReadString(64, n/enc.UnitSize(), enc)
		if err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Errorf("%s round trip = %q", enc, got)
		}
	}
}

func TestBigIntRoundTrip(t *testing.T) {
	huge, _ := new(big.Int).SetString("-123456789012345678901234567890123456789012345678901234567890", 10)
	tests := []struct {
		name  string
		x     *big.Int
		words uint32
	}{
		{"zero", big.NewInt(0), 0},
		{"one", big.NewInt(1), 1},
		{"negative", big.NewInt(-5), 1},
		{"max uint64", new(big.Int).SetUint64(math.MaxUint64), 1},
		{"two words", new(big.Int).Lsh(big.NewInt(1), 64), 2},
		{"four words", huge, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newView()
			n, err := v.WriteBigInt(tt.x, 128, 8)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.words {
				t.Fatalf("word count = %d, want %d", n, tt.words)
			}
			var sign uint32
			if tt.x.Sign() < 0 {
				sign = 1
			}
			got, err := v.ReadBigInt(sign, n, 128)
			if err != nil {
				t.Fatal(err)
			}
			if got.Cmp(tt.x) != 0 {
				t.Errorf("round trip = %s, want %s", got, tt.x)
			}
		})
	}
}

func TestWriteBigIntCapacity(t *testing.T) {
	v, mem := newView()
	x := new(big.Int).Lsh(big.NewInt(3), 128) // three words
	n, err := v.WriteBigInt(x, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("needed = %d, want 3", n)
	}
	for i := 8; i < 24; i++ {
		if mem.Buf[i] != 0 {
			t.Fatalf("wrote past capacity at byte %d", i)
		}
	}
}

func TestReadDescriptors(t *testing.T) {
	v, _ := newView()
	for i := uint32(0); i < 16; i++ {
		if err := v.PutU32(512+i*4, i+1); err != nil {
			t.Fatal(err)
		}
	}
	ds, err := v.ReadDescriptors(2, 512)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 2 {
		t.Fatalf("len = %d", len(ds))
	}
	want := RawDescriptor{UTF8Name: 9, Name: 10, Method: 11, Getter: 12, Setter: 13, Value: 14, Attributes: 15, Data: 16}
	if ds[1] != want {
		t.Errorf("descriptor 1 = %+v, want %+v", ds[1], want)
	}
	if _, err := v.ReadDescriptors(4096, PageSize-32); err == nil {
		t.Error("expected out of bounds error")
	}
}
