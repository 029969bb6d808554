package imaging

import (
	"math"
	"path/filepath"
	"testing"
)

func gradientImage(h, w int) Image {
	data := make([]float64, h*w)
	for i := range data {
		data[i] = float64(i) / float64(h*w-1)
	}
	return New(data, h, w)
}

func TestNewPanicsOnDimensionMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for data/dimension mismatch")
		}
	}()
	New(make([]float64, 5), 2, 2)
}

func TestSavePNGLoadRoundTrip(t *testing.T) {
	im := gradientImage(8, 8).WithTitle("gradient")
	path := filepath.Join(t.TempDir(), "gradient.png")

	if err := im.SavePNG(path); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Height != 8 || loaded.Width != 8 {
		t.Fatalf("loaded dimensions = %dx%d, want 8x8", loaded.Height, loaded.Width)
	}
	if loaded.Title != "gradient" {
		t.Errorf("loaded title = %q, want %q", loaded.Title, "gradient")
	}
	// 8-bit quantization allows up to half a step of error per pixel.
	for i := range im.Data {
		if math.Abs(loaded.Data[i]-im.Data[i]) > 0.5/255+1e-9 {
			t.Fatalf("pixel %d = %v after round trip, want ~%v", i, loaded.Data[i], im.Data[i])
		}
	}
}

func TestMinMax(t *testing.T) {
	im := New([]float64{0.3, -0.1, 0.9, 0.5}, 2, 2)
	min, max := im.MinMax()
	if min != -0.1 || max != 0.9 {
		t.Errorf("MinMax() = %v, %v, want -0.1, 0.9", min, max)
	}
}

func TestResize(t *testing.T) {
	im := gradientImage(28, 28)

	tests := []struct {
		name   string
		height int
		width  int
	}{
		{"Downscale", 14, 14},
		{"Upscale", 56, 56},
		{"NonSquare", 7, 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := im.Resize(tt.height, tt.width)
			if out.Height != tt.height || out.Width != tt.width {
				t.Fatalf("Resize dims = %dx%d, want %dx%d",
					out.Height, out.Width, tt.height, tt.width)
			}
			if len(out.Data) != tt.height*tt.width {
				t.Fatalf("Resize data length = %d, want %d", len(out.Data), tt.height*tt.width)
			}
			min, max := out.MinMax()
			if min < 0 || max > 1 {
				t.Errorf("Resize range = [%v, %v], want within [0, 1]", min, max)
			}
		})
	}
}

func TestRescale(t *testing.T) {
	im := New([]float64{0.2, 0.4, 0.6, 0.8}, 2, 2)
	out := im.Rescale(0, 1)

	min, max := out.MinMax()
	if math.Abs(min) > 1e-12 || math.Abs(max-1) > 1e-12 {
		t.Errorf("Rescale range = [%v, %v], want [0, 1]", min, max)
	}
	// Linearity: the midpoints keep their relative spacing.
	if math.Abs(out.Data[1]-1.0/3) > 1e-12 {
		t.Errorf("Rescale[1] = %v, want 1/3", out.Data[1])
	}

	// Source must be untouched.
	if im.Data[0] != 0.2 {
		t.Error("Rescale mutated the source image")
	}
}

func TestRescaleConstantImage(t *testing.T) {
	im := New([]float64{0.5, 0.5, 0.5, 0.5}, 2, 2)
	out := im.Rescale(0.1, 0.9)
	for i, v := range out.Data {
		if v != 0.1 {
			t.Fatalf("Rescale constant pixel %d = %v, want 0.1", i, v)
		}
	}
}

func TestClip(t *testing.T) {
	im := New([]float64{-0.5, 0, 0.3, 1}, 2, 2)
	out := im.Clip(0)
	want := []float64{0, 0, 0.3, 1}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("Clip[%d] = %v, want %v", i, out.Data[i], want[i])
		}
	}
}

func TestRotateRightAnglesAreExact(t *testing.T) {
	im := New([]float64{
		1, 2,
		3, 4,
		5, 6,
	}, 3, 2)

	r90 := im.Rotate(90)
	if r90.Height != 2 || r90.Width != 3 {
		t.Fatalf("Rotate(90) dims = %dx%d, want 2x3", r90.Height, r90.Width)
	}
	want90 := []float64{
		2, 4, 6,
		1, 3, 5,
	}
	for i := range want90 {
		if r90.Data[i] != want90[i] {
			t.Fatalf("Rotate(90)[%d] = %v, want %v", i, r90.Data[i], want90[i])
		}
	}

	r180 := im.Rotate(180)
	want180 := []float64{
		6, 5,
		4, 3,
		2, 1,
	}
	for i := range want180 {
		if r180.Data[i] != want180[i] {
			t.Fatalf("Rotate(180)[%d] = %v, want %v", i, r180.Data[i], want180[i])
		}
	}

	// Four quarter turns restore the original.
	back := im.Rotate(90).Rotate(90).Rotate(90).Rotate(90)
	for i := range im.Data {
		if back.Data[i] != im.Data[i] {
			t.Fatalf("four 90-degree turns changed pixel %d", i)
		}
	}

	// Negative angles normalize: -90 == 270.
	r270 := im.Rotate(270)
	rNeg := im.Rotate(-90)
	for i := range r270.Data {
		if r270.Data[i] != rNeg.Data[i] {
			t.Fatalf("Rotate(-90) differs from Rotate(270) at pixel %d", i)
		}
	}
}

func TestRotateArbitraryAngleGrowsCanvas(t *testing.T) {
	im := gradientImage(10, 10)
	out := im.Rotate(45)

	if out.Height <= 10 || out.Width <= 10 {
		t.Fatalf("Rotate(45) dims = %dx%d, want larger than 10x10", out.Height, out.Width)
	}
	// Corners of the grown canvas fall outside the source and read zero.
	if out.Data[0] != 0 {
		t.Errorf("Rotate(45) corner = %v, want 0", out.Data[0])
	}
}

func TestGaussianSmoothsAndPreservesConstants(t *testing.T) {
	// A constant image is a fixed point of any normalized blur.
	flat := New([]float64{0.7, 0.7, 0.7, 0.7, 0.7, 0.7, 0.7, 0.7, 0.7}, 3, 3)
	out := flat.Gaussian(1.5)
	for i, v := range out.Data {
		if math.Abs(v-0.7) > 1e-12 {
			t.Fatalf("Gaussian on constant image, pixel %d = %v, want 0.7", i, v)
		}
	}

	// An impulse spreads: the center loses mass, its neighbors gain some.
	impulse := New(make([]float64, 25), 5, 5)
	impulse.Data[12] = 1
	blurred := impulse.Gaussian(1)
	if blurred.Data[12] >= 1 {
		t.Errorf("blurred impulse center = %v, want < 1", blurred.Data[12])
	}
	if blurred.Data[11] <= 0 {
		t.Errorf("blurred impulse neighbor = %v, want > 0", blurred.Data[11])
	}
}

func TestUniform(t *testing.T) {
	// Interior pixel of a 3x3 box blur averages its 9 neighbors.
	im := New([]float64{
		0, 0, 0, 0, 0,
		0, 9, 0, 0, 0,
		0, 0, 0, 0, 0,
		0, 0, 0, 0, 0,
		0, 0, 0, 0, 0,
	}, 5, 5)
	out := im.Uniform(3)
	if math.Abs(out.Data[2*5+2]-1) > 1e-12 {
		t.Errorf("Uniform(3) at (2,2) = %v, want 1", out.Data[2*5+2])
	}

	// Size 1 is a no-op.
	same := im.Uniform(1)
	for i := range im.Data {
		if same.Data[i] != im.Data[i] {
			t.Fatalf("Uniform(1) changed pixel %d", i)
		}
	}
}

func TestGrid(t *testing.T) {
	tiles := []Image{
		New([]float64{1, 1, 1, 1}, 2, 2),
		New([]float64{2, 2, 2, 2}, 2, 2),
		New([]float64{3, 3, 3, 3}, 2, 2),
	}
	out := Grid(tiles, 2)

	if out.Height != 4 || out.Width != 4 {
		t.Fatalf("Grid dims = %dx%d, want 4x4", out.Height, out.Width)
	}
	// Top row holds tiles 1 and 2, bottom-left holds tile 3, the
	// remaining cell stays zero.
	if out.Data[0] != 1 || out.Data[2] != 2 {
		t.Errorf("Grid top row = %v, %v, want 1, 2", out.Data[0], out.Data[2])
	}
	if out.Data[2*4] != 3 {
		t.Errorf("Grid bottom-left = %v, want 3", out.Data[2*4])
	}
	if out.Data[2*4+2] != 0 {
		t.Errorf("Grid empty cell = %v, want 0", out.Data[2*4+2])
	}
}

func TestGridPanicsOnMixedSizes(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for mixed tile sizes")
		}
	}()
	Grid([]Image{
		New(make([]float64, 4), 2, 2),
		New(make([]float64, 6), 2, 3),
	}, 2)
}
