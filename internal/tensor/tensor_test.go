package tensor

import (
	"math/rand"
	"testing"
)

func TestShapeNumElements(t *testing.T) {
	cases := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{4}, 4},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
	}
	for _, c := range cases {
		if got := c.shape.NumElements(); got != c.want {
			t.Errorf("NumElements(%v) = %d, want %d", c.shape, got, c.want)
		}
	}
}

func TestShapeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.Strides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Fatalf("Strides = %v, want %v", strides, want)
		}
	}
}

func TestBroadcast(t *testing.T) {
	out, err := Broadcast(Shape{3, 1}, Shape{3, 5})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(Shape{3, 5}) {
		t.Errorf("Broadcast = %v, want [3 5]", out)
	}

	out, err = Broadcast(Shape{4, 1, 2}, Shape{3, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(Shape{4, 3, 2}) {
		t.Errorf("Broadcast = %v, want [4 3 2]", out)
	}

	if _, err = Broadcast(Shape{3, 4}, Shape{3, 5}); err == nil {
		t.Error("expected error for incompatible shapes")
	}
}

func TestAtSetRoundTrip(t *testing.T) {
	tt := Zeros(Shape{2, 3}, CPU)
	tt.Set(7, 1, 2)
	if got := tt.At(1, 2); got != 7 {
		t.Errorf("At(1,2) = %f, want 7", got)
	}
	if got := tt.Data()[1*3+2]; got != 7 {
		t.Errorf("flat layout: got %f at offset 5, want 7", got)
	}
}

func TestFromSliceRejectsBadLength(t *testing.T) {
	if _, err := FromSlice([]float32{1, 2, 3}, Shape{2, 2}, CPU); err == nil {
		t.Error("expected error for mismatched data length")
	}
}

func TestViewSharesData(t *testing.T) {
	tt := Zeros(Shape{2, 6}, CPU)
	v, err := tt.View(Shape{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	v.Set(5, 2, 3)
	if tt.Data()[11] != 5 {
		t.Error("view does not share backing data")
	}
	if _, err := tt.View(Shape{5}); err == nil {
		t.Error("expected error for element count mismatch")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := Randn(Shape{4, 4}, rng, CPU)
	b := a.Clone()
	b.Data()[0] = 42
	if a.Data()[0] == 42 {
		t.Error("clone shares data with original")
	}
}

func TestUniformRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	u := Uniform(Shape{1000}, -0.5, 0.5, rng, CPU)
	for _, v := range u.Data() {
		if v < -0.5 || v >= 0.5 {
			t.Fatalf("value %f outside [-0.5, 0.5)", v)
		}
	}
}
