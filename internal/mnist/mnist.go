// Package mnist loads MNIST-style IDX datasets and serves them in batches.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
)

// IDX magic numbers for unsigned-byte tensors.
const (
	magicImages = 2051
	magicLabels = 2049
)

// Dataset holds images as flattened [0,1] float64 rows plus their labels.
// Labels are kept for loader compatibility; the VAE never consumes them.
type Dataset struct {
	Images [][]float64
	Labels []int
	Height int
	Width  int
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Images) }

// Load reads the standard four MNIST files from dir
// (train-images-idx3-ubyte, train-labels-idx1-ubyte, t10k-..., each
// optionally with a .gz suffix).
func Load(dir string) (train, test *Dataset, err error) {
	train, err = loadPair(dir, "train-images-idx3-ubyte", "train-labels-idx1-ubyte")
	if err != nil {
		return nil, nil, fmt.Errorf("train set: %w", err)
	}
	test, err = loadPair(dir, "t10k-images-idx3-ubyte", "t10k-labels-idx1-ubyte")
	if err != nil {
		return nil, nil, fmt.Errorf("test set: %w", err)
	}
	return train, test, nil
}

func loadPair(dir, imagesName, labelsName string) (*Dataset, error) {
	images, h, w, err := readImages(findFile(dir, imagesName))
	if err != nil {
		return nil, err
	}
	labels, err := readLabels(findFile(dir, labelsName))
	if err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("image/label count mismatch: %d vs %d", len(images), len(labels))
	}
	return &Dataset{Images: images, Labels: labels, Height: h, Width: w}, nil
}

// findFile prefers the plain file, falling back to the gzipped variant.
func findFile(dir, name string) string {
	plain := filepath.Join(dir, name)
	if _, err := os.Stat(plain); err == nil {
		return plain
	}
	return plain + ".gz"
}

func open(path string) (io.ReadCloser, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if filepath.Ext(path) != ".gz" {
		return file, file.Close, nil
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("gzip open %s: %w", path, err)
	}
	closeAll := func() error {
		gz.Close()
		return file.Close()
	}
	return gz, closeAll, nil
}

// readImages parses an idx3-ubyte image file, scaling pixels to [0,1].
func readImages(path string) (images [][]float64, height, width int, err error) {
	r, closer, err := open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer closer()

	var header [4]int32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("read header of %s: %w", path, err)
	}
	if header[0] != magicImages {
		return nil, 0, 0, fmt.Errorf("%s: bad magic %d, want %d", path, header[0], magicImages)
	}

	count := int(header[1])
	height, width = int(header[2]), int(header[3])
	size := height * width

	buf := make([]byte, size)
	images = make([][]float64, count)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, 0, fmt.Errorf("read image %d of %s: %w", i, path, err)
		}
		row := make([]float64, size)
		for j, b := range buf {
			row[j] = float64(b)
		}
		floats.Scale(1.0/255.0, row)
		images[i] = row
	}
	return images, height, width, nil
}

// readLabels parses an idx1-ubyte label file.
func readLabels(path string) ([]int, error) {
	r, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	var header [2]int32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if header[0] != magicLabels {
		return nil, fmt.Errorf("%s: bad magic %d, want %d", path, header[0], magicLabels)
	}

	buf := make([]byte, int(header[1]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read labels of %s: %w", path, err)
	}
	labels := make([]int, len(buf))
	for i, b := range buf {
		labels[i] = int(b)
	}
	return labels, nil
}

// Synthetic generates an MNIST-shaped dataset of soft blobs, one blob
// position per fake class. Good enough to exercise the full training path
// when no dataset directory is available.
func Synthetic(n, height, width int, rng *rand.Rand) *Dataset {
	images := make([][]float64, n)
	labels := make([]int, n)

	for i := 0; i < n; i++ {
		label := rng.Intn(10)
		labels[i] = label

		// Blob center cycles with the class; radius and intensity jitter.
		cy := float64(height)/2 + 6*math.Sin(2*math.Pi*float64(label)/10)
		cx := float64(width)/2 + 6*math.Cos(2*math.Pi*float64(label)/10)
		radius := 3.0 + rng.Float64()*2.0

		img := make([]float64, height*width)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dy, dx := float64(y)-cy, float64(x)-cx
				v := math.Exp(-(dy*dy + dx*dx) / (2 * radius * radius))
				if v < 0.05 {
					v = 0
				}
				img[y*width+x] = v
			}
		}
		images[i] = img
	}
	return &Dataset{Images: images, Labels: labels, Height: height, Width: width}
}
