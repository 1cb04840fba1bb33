package imager

import (
	"image"
	"image/color"
	"testing"
)

func checkerboard(w, h, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 230})
			} else {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	return img
}

func solid(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestComputeIdenticalImagesHaveZeroDistance(t *testing.T) {
	img := checkerboard(200, 200, 10)
	a := Compute(img)
	b := Compute(img)
	if d := Distance(a, b); d != 0 {
		t.Fatalf("expected zero distance for identical images, got %f", d)
	}
}

func TestComputeFlatImageIsSelfConsistent(t *testing.T) {
	img := solid(200, 200, 128)
	a := Compute(img)
	b := Compute(img)
	if d := Distance(a, b); d != 0 {
		t.Fatalf("expected zero distance for identical flat images, got %f", d)
	}
}

func TestComputeDistinctImagesDiffer(t *testing.T) {
	a := Compute(checkerboard(200, 200, 10))
	b := Compute(checkerboard(200, 200, 40))
	if d := Distance(a, b); d == 0 {
		t.Fatal("expected nonzero distance between visually distinct images")
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Compute(checkerboard(200, 200, 10))
	b := Compute(checkerboard(200, 200, 25))
	if Distance(a, b) != Distance(b, a) {
		t.Fatal("distance must be symmetric")
	}
}

func TestWordsLengthAndIndexPacking(t *testing.T) {
	sig := Compute(checkerboard(200, 200, 10))
	words := Words(sig)
	if len(words) != numWords {
		t.Fatalf("expected %d words, got %d", numWords, len(words))
	}
	for i, w := range words {
		idx := int(uint32(w) >> wordContentBits)
		if idx != i {
			t.Fatalf("word %d: expected packed index %d, got %d", i, i, idx)
		}
	}
}
