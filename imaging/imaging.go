// Package imaging provides a small grayscale image value type layered on
// the standard image packages, for preparing model inputs and rendering
// reconstructions. Every operation returns a new Image; values are never
// mutated in place, so transformations chain safely.
package imaging

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for the formats Decode accepts.
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Image is a grayscale image with float64 pixels, flattened row-major.
// Pixel values are nominally in [0, 1] but are not clamped until rendering.
type Image struct {
	Data   []float64
	Height int
	Width  int
	Title  string
}

// New wraps flattened pixel data as an Image.
func New(data []float64, height, width int) Image {
	if len(data) != height*width {
		panic("imaging: data length does not match dimensions")
	}
	return Image{Data: data, Height: height, Width: width}
}

// Load reads and decodes an image file (png, jpeg or webp) to grayscale.
// The title defaults to the file name without extension.
func Load(path string) (Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	im, err := Decode(file)
	if err != nil {
		return Image{}, fmt.Errorf("decode %s: %w", path, err)
	}
	base := filepath.Base(path)
	im.Title = strings.TrimSuffix(base, filepath.Ext(base))
	return im, nil
}

// Decode decodes an image from a reader and converts it to grayscale,
// scaling pixels to [0, 1].
func Decode(r io.Reader) (Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return Image{}, err
	}

	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)
	return fromGray(gray), nil
}

// SavePNG clamps pixels to [0, 1] and writes an 8-bit grayscale PNG.
func (im Image) SavePNG(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, im.toGray()); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// WithTitle returns a copy with the given title.
func (im Image) WithTitle(title string) Image {
	out := im
	out.Title = title
	return out
}

// MinMax returns the smallest and largest pixel values.
func (im Image) MinMax() (min, max float64) {
	if len(im.Data) == 0 {
		return 0, 0
	}
	min, max = im.Data[0], im.Data[0]
	for _, v := range im.Data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Resize returns the image scaled to the given size with bilinear
// interpolation. The round trip through 8-bit grayscale quantizes pixel
// values to 1/255 steps.
func (im Image) Resize(height, width int) Image {
	if height <= 0 || width <= 0 {
		panic("imaging: resize dimensions must be positive")
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), im.toGray(), im.toGray().Bounds(), xdraw.Src, nil)
	out := fromGray(dst)
	out.Title = im.Title
	return out
}

// Rescale linearly maps the current [min, max] pixel range onto [lo, hi].
// A constant image maps entirely to lo.
func (im Image) Rescale(lo, hi float64) Image {
	min, max := im.MinMax()
	out := im.clone()
	if max == min {
		for i := range out.Data {
			out.Data[i] = lo
		}
		return out
	}
	scale := (hi - lo) / (max - min)
	for i, v := range im.Data {
		out.Data[i] = lo + (v-min)*scale
	}
	return out
}

// Clip returns the image with every pixel raised to at least min.
func (im Image) Clip(min float64) Image {
	out := im.clone()
	for i, v := range im.Data {
		if v < min {
			out.Data[i] = min
		}
	}
	return out
}

// Rotate returns the image rotated counter-clockwise by the given angle in
// degrees, with the canvas grown to hold the rotated bounds. Right angles
// take an exact pixel-shuffling path; other angles resample bilinearly with
// out-of-bounds pixels set to zero.
func (im Image) Rotate(angleDeg float64) Image {
	angle := math.Mod(angleDeg, 360)
	if angle < 0 {
		angle += 360
	}
	switch angle {
	case 0:
		return im.clone()
	case 90, 180, 270:
		return im.rotateRight(int(angle) / 90)
	}

	rad := angle * math.Pi / 180
	sin, cos := math.Sincos(rad)

	h, w := float64(im.Height), float64(im.Width)
	outW := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin)))
	outH := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos)))

	out := Image{
		Data:   make([]float64, outH*outW),
		Height: outH,
		Width:  outW,
		Title:  im.Title,
	}

	// Inverse-map each output pixel into the source frame.
	cxOut, cyOut := float64(outW)/2, float64(outH)/2
	cxIn, cyIn := w/2, h/2
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			dx, dy := float64(x)+0.5-cxOut, float64(y)+0.5-cyOut
			sx := cos*dx - sin*dy + cxIn - 0.5
			sy := sin*dx + cos*dy + cyIn - 0.5
			out.Data[y*outW+x] = im.sampleBilinear(sx, sy)
		}
	}
	return out
}

// rotateRight rotates by k*90 degrees counter-clockwise without resampling.
func (im Image) rotateRight(k int) Image {
	src := im
	for n := 0; n < k; n++ {
		h, w := src.Height, src.Width
		out := Image{Data: make([]float64, w*h), Height: w, Width: h, Title: src.Title}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				// (x, y) -> (y, w-1-x) for one 90-degree CCW turn.
				out.Data[(w-1-x)*h+y] = src.Data[y*w+x]
			}
		}
		src = out
	}
	return src
}

func (im Image) sampleBilinear(x, y float64) float64 {
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)

	get := func(xi, yi int) float64 {
		if xi < 0 || xi >= im.Width || yi < 0 || yi >= im.Height {
			return 0
		}
		return im.Data[yi*im.Width+xi]
	}

	top := get(x0, y0)*(1-fx) + get(x0+1, y0)*fx
	bottom := get(x0, y0+1)*(1-fx) + get(x0+1, y0+1)*fx
	return top*(1-fy) + bottom*fy
}

// Gaussian returns the image blurred with a Gaussian kernel of the given
// standard deviation, applied separably with nearest-edge padding.
func (im Image) Gaussian(sigma float64) Image {
	if sigma <= 0 {
		return im.clone()
	}

	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	return im.separable(kernel, radius)
}

// Uniform returns the image filtered with a size x size box kernel with
// nearest-edge padding.
func (im Image) Uniform(size int) Image {
	if size <= 1 {
		return im.clone()
	}
	radius := size / 2
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		kernel[i] = 1 / float64(len(kernel))
	}
	return im.separable(kernel, radius)
}

// separable applies a 1-D kernel horizontally then vertically.
func (im Image) separable(kernel []float64, radius int) Image {
	h, w := im.Height, im.Width
	clampX := func(x int) int {
		if x < 0 {
			return 0
		}
		if x >= w {
			return w - 1
		}
		return x
	}
	clampY := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= h {
			return h - 1
		}
		return y
	}

	tmp := make([]float64, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k, kv := range kernel {
				sum += kv * im.Data[y*w+clampX(x+k-radius)]
			}
			tmp[y*w+x] = sum
		}
	}

	out := Image{Data: make([]float64, h*w), Height: h, Width: w, Title: im.Title}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k, kv := range kernel {
				sum += kv * tmp[clampY(y+k-radius)*w+x]
			}
			out.Data[y*w+x] = sum
		}
	}
	return out
}

// Grid tiles same-sized images left to right, top to bottom, into one
// image with cols columns.
func Grid(images []Image, cols int) Image {
	if len(images) == 0 || cols <= 0 {
		panic("imaging: grid needs images and a positive column count")
	}
	h, w := images[0].Height, images[0].Width
	for _, im := range images {
		if im.Height != h || im.Width != w {
			panic("imaging: grid images must share dimensions")
		}
	}

	rows := (len(images) + cols - 1) / cols
	out := Image{
		Data:   make([]float64, rows*h*cols*w),
		Height: rows * h,
		Width:  cols * w,
	}
	for i, im := range images {
		top := (i / cols) * h
		left := (i % cols) * w
		for y := 0; y < h; y++ {
			copy(out.Data[(top+y)*out.Width+left:(top+y)*out.Width+left+w],
				im.Data[y*w:(y+1)*w])
		}
	}
	return out
}

func (im Image) clone() Image {
	out := im
	out.Data = append([]float64(nil), im.Data...)
	return out
}

func (im Image) toGray() *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
	for i, v := range im.Data {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		gray.Pix[i] = uint8(math.Round(v * 255))
	}
	return gray
}

func fromGray(gray *image.Gray) Image {
	bounds := gray.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	data := make([]float64, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y) / 255
		}
	}
	return Image{Data: data, Height: h, Width: w}
}
