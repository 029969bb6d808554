package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIDX(t *testing.T, path string, header []int32, data []byte, compress bool) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		w = gz
	}

	require.NoError(t, binary.Write(w, binary.BigEndian, header))
	_, err = w.Write(data)
	require.NoError(t, err)

	if gz != nil {
		require.NoError(t, gz.Close())
	}
}

func writeImages(t *testing.T, path string, images [][]byte, h, w int, compress bool) {
	t.Helper()
	var data []byte
	for _, img := range images {
		require.Len(t, img, h*w)
		data = append(data, img...)
	}
	writeIDX(t, path, []int32{magicImages, int32(len(images)), int32(h), int32(w)}, data, compress)
}

func writeLabels(t *testing.T, path string, labels []byte, compress bool) {
	t.Helper()
	writeIDX(t, path, []int32{magicLabels, int32(len(labels))}, labels, compress)
}

func TestLoadReadsPlainAndGzippedFiles(t *testing.T) {
	dir := t.TempDir()

	// Train files plain, test files gzipped, to exercise the .gz fallback.
	writeImages(t, filepath.Join(dir, "train-images-idx3-ubyte"), [][]byte{
		{0, 51, 102, 153},
		{255, 204, 153, 102},
		{10, 20, 30, 40},
	}, 2, 2, false)
	writeLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []byte{3, 7, 1}, false)
	writeImages(t, filepath.Join(dir, "t10k-images-idx3-ubyte.gz"), [][]byte{
		{0, 128, 255, 64},
		{1, 2, 3, 4},
	}, 2, 2, true)
	writeLabels(t, filepath.Join(dir, "t10k-labels-idx1-ubyte.gz"), []byte{9, 0}, true)

	train, test, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, 3, train.Len())
	require.Equal(t, 2, test.Len())
	assert.Equal(t, 2, train.Height)
	assert.Equal(t, 2, train.Width)
	assert.Equal(t, []int{3, 7, 1}, train.Labels)
	assert.Equal(t, []int{9, 0}, test.Labels)

	// Pixels scale to [0,1] by 1/255.
	assert.InDelta(t, 0.0, train.Images[0][0], 1e-12)
	assert.InDelta(t, 51.0/255.0, train.Images[0][1], 1e-12)
	assert.InDelta(t, 1.0, train.Images[1][0], 1e-12)
	assert.InDelta(t, 128.0/255.0, test.Images[0][1], 1e-12)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, filepath.Join(dir, "train-images-idx3-ubyte"),
		[]int32{1234, 1, 2, 2}, make([]byte, 4), false)
	writeLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []byte{0}, false)

	_, _, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestLoadRejectsCountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, filepath.Join(dir, "train-images-idx3-ubyte"), [][]byte{
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, 2, 2, false)
	writeLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []byte{1}, false)

	_, _, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestLoaderBatching(t *testing.T) {
	ds := Synthetic(5, 4, 4, rand.New(rand.NewSource(1)))
	l := NewLoader(ds, 2, false, nil)

	assert.Equal(t, 3, l.Batches())

	sizes := []int{}
	for {
		x, y, ok := l.Next()
		if !ok {
			break
		}
		require.Equal(t, len(x), len(y))
		sizes = append(sizes, len(x))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)

	// Exhausted until Reset.
	_, _, ok := l.Next()
	assert.False(t, ok)
	l.Reset()
	_, _, ok = l.Next()
	assert.True(t, ok)
}

func TestLoaderPreservesOrderWithoutShuffle(t *testing.T) {
	ds := Synthetic(6, 4, 4, rand.New(rand.NewSource(2)))
	l := NewLoader(ds, 4, false, nil)

	var labels []int
	for {
		_, y, ok := l.Next()
		if !ok {
			break
		}
		labels = append(labels, y...)
	}
	assert.Equal(t, ds.Labels, labels)
}

func TestLoaderShuffleReordersButKeepsAllSamples(t *testing.T) {
	ds := Synthetic(32, 4, 4, rand.New(rand.NewSource(3)))
	l := NewLoader(ds, 8, true, rand.New(rand.NewSource(4)))

	collect := func() []int {
		l.Reset()
		var labels []int
		for {
			_, y, ok := l.Next()
			if !ok {
				break
			}
			labels = append(labels, y...)
		}
		return labels
	}

	first := collect()
	second := collect()

	assert.NotEqual(t, first, second, "two shuffled passes should differ")
	assert.ElementsMatch(t, ds.Labels, first)
	assert.ElementsMatch(t, ds.Labels, second)
}

func TestLoaderPanicsOnBadConfig(t *testing.T) {
	ds := Synthetic(4, 4, 4, rand.New(rand.NewSource(5)))

	assert.Panics(t, func() { NewLoader(ds, 0, false, nil) })
	assert.Panics(t, func() { NewLoader(ds, 2, true, nil) })
}

func TestSynthetic(t *testing.T) {
	ds := Synthetic(20, 28, 28, rand.New(rand.NewSource(6)))

	require.Equal(t, 20, ds.Len())
	assert.Equal(t, 28, ds.Height)
	assert.Equal(t, 28, ds.Width)

	for i, img := range ds.Images {
		require.Len(t, img, 28*28)
		for _, v := range img {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
		assert.GreaterOrEqual(t, ds.Labels[i], 0)
		assert.Less(t, ds.Labels[i], 10)
	}
}
