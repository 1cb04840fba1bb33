// Computes the Goldberg-style perceptual signature used for reverse image
// search and near-duplicate detection (spec.md §4.C).

package imager

import (
	"image"
	"math"
	"sort"
)

const (
	cropPercentile     = 5
	numGridPoints      = 9
	identicalTolerance = 1
	luminanceLevels    = 2
	numWords           = 100
	numLetters         = 16
	numSymbols         = 2*luminanceLevels + 1
	wordIndexBits      = 7
	wordContentBits    = 25
)

// signatureLength is 9*9 grid points * 8 neighbours, minus the
// neighbour pairs that fall outside the grid on its edges and
// corners: 49 interior cells * 8 + 28 edge cells * 5 + 4 corner
// cells * 3 = 544 (spec.md §4.C step 5).
const signatureLength = 544

// Signature is a fixed-size perceptual fingerprint of a decoded image,
// quantised per-image into 5 levels {-2,-1,0,1,2} (spec.md §4.C step 4).
type Signature [signatureLength]int8

// Compute derives a Signature from a decoded image following the
// Goldberg-style algorithm of spec.md §4.C, grounded on
// original_source/server/src/image/signature.rs: crop the central
// content box, lay a 9x9 grid of windowed means over it, take signed
// differences against each grid point's up-to-8 neighbours, and
// quantise the differences into 5 bins using per-image robust
// quantiles.
func Compute(img image.Image) Signature {
	gray := toGray(img)
	gp := computeGridPoints(gray)
	means := computeMeanMatrix(gray, gp)
	diffs := computeDifferentials(means)
	return quantise(diffs)
}

// toGray converts an arbitrary decoded image to 8-bit luma, matching
// image::DynamicImage::to_luma8 in the original.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

type gridPoints struct {
	xs [numGridPoints]int
	ys [numGridPoints]int
}

// gridSquareRadius is half the side length of the averaging window, a
// fixed proportion of the image's shorter dimension (spec.md §4.C
// step 3: "side proportional to min(width,height)/20").
func gridSquareRadius(width, height int) int {
	m := width
	if height < m {
		m = height
	}
	size := 0.5 + float64(m)/20.0
	return int(size / 2.0)
}

// computeGridPoints crops the central content box by walking
// cumulative intensity-gradient mass in from each edge until
// cropPercentile of the total is consumed, then lays a 9x9 linspace
// grid over what remains (spec.md §4.C steps 1-2).
func computeGridPoints(img *image.Gray) gridPoints {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	rowDelta := func(x int) int64 {
		var sum int64
		for y := 0; y < h; y++ {
			sum += absDiff(pix(img, x, y), pix(img, x+1, y))
		}
		return sum
	}
	colDelta := func(y int) int64 {
		var sum int64
		for x := 0; x < w; x++ {
			sum += absDiff(pix(img, x, y), pix(img, x, y+1))
		}
		return sum
	}

	var totalRow, totalCol int64
	for x := 0; x <= w-2; x++ {
		for y := 0; y <= h-2; y++ {
			totalRow += absDiff(pix(img, x, y), pix(img, x+1, y))
			totalCol += absDiff(pix(img, x, y), pix(img, x, y+1))
		}
	}
	rowLimit := cropPercentile * totalRow / 100
	colLimit := cropPercentile * totalCol / 100

	lowX := findBound(0, w-2, 1, rowLimit, rowDelta)
	highX := findBound(w-2, 0, -1, rowLimit, rowDelta)
	lowY := findBound(0, h-2, 1, colLimit, colDelta)
	highY := findBound(h-2, 0, -1, colLimit, colDelta)

	r := gridSquareRadius(highX-lowX, highY-lowY)
	lowX += r
	highX -= r
	lowY += r
	highY -= r

	var gp gridPoints
	xs := linspace(lowX, highX, numGridPoints)
	ys := linspace(lowY, highY, numGridPoints)
	copy(gp.xs[:], xs)
	copy(gp.ys[:], ys)
	return gp
}

// findBound scans from start towards stop in steps of dir, accumulating
// delta(i) until it reaches limit, and returns the first index at which
// the accumulated sum (not yet including that index) meets or exceeds
// limit.
func findBound(start, stop, dir int, limit int64, delta func(int) int64) int {
	var cumulative int64
	i := start
	for {
		if cumulative >= limit {
			return i
		}
		if (dir > 0 && i > stop) || (dir < 0 && i < stop) {
			return i
		}
		cumulative += delta(i)
		i += dir
	}
}

func pix(img *image.Gray, x, y int) int {
	b := img.Bounds()
	if x < b.Min.X {
		x = b.Min.X
	}
	if x >= b.Max.X {
		x = b.Max.X - 1
	}
	if y < b.Min.Y {
		y = b.Min.Y
	}
	if y >= b.Max.Y {
		y = b.Max.Y - 1
	}
	return int(img.GrayAt(x, y).Y)
}

func absDiff(a, b int) int64 {
	d := int64(a) - int64(b)
	if d < 0 {
		return -d
	}
	return d
}

// linspace returns n integer points evenly spaced between low and
// high inclusive, rounding to the nearest integer (spec.md §4.C step
// 2's "9x9 grid... via linspace").
func linspace(low, high, n int) []int {
	points := make([]int, n)
	if n == 1 {
		points[0] = low
		return points
	}
	step := float64(high-low) / float64(n-1)
	for i := 0; i < n; i++ {
		points[i] = low + int(math.Round(step*float64(i)))
	}
	return points
}

// meanMatrix holds the 9x9 windowed-mean grid in row-major order.
type meanMatrix [numGridPoints * numGridPoints]uint8

func (m meanMatrix) at(i, j int) (uint8, bool) {
	if i < 0 || i >= numGridPoints || j < 0 || j >= numGridPoints {
		return 0, false
	}
	return m[i*numGridPoints+j], true
}

// computeMeanMatrix averages image luminance over a square window
// centred on each of the 81 grid points (spec.md §4.C step 3).
func computeMeanMatrix(img *image.Gray, gp gridPoints) meanMatrix {
	croppedW := gp.xs[numGridPoints-1] - gp.xs[0]
	croppedH := gp.ys[numGridPoints-1] - gp.ys[0]
	radius := gridSquareRadius(croppedW, croppedH)
	side := 2*radius + 1
	totalPoints := int64(side * side)
	if totalPoints == 0 {
		totalPoints = 1
	}

	b := img.Bounds()
	var m meanMatrix
	for i, cx := range gp.xs {
		for j, cy := range gp.ys {
			var sum int64
			for x := cx - radius; x <= cx+radius; x++ {
				if x < b.Min.X || x >= b.Max.X {
					continue
				}
				for y := cy - radius; y <= cy+radius; y++ {
					if y < b.Min.Y || y >= b.Max.Y {
						continue
					}
					sum += int64(img.GrayAt(x, y).Y)
				}
			}
			m[i*numGridPoints+j] = uint8(sum / totalPoints)
		}
	}
	return m
}

var neighborOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// computeDifferentials compares each grid point's mean against its
// up-to-8 immediate neighbours by signed difference, skipping
// neighbours that fall outside the grid (spec.md §4.C step 4; the
// original paper computes all 8 per point but the boundary points
// have fewer, which is how the vector shrinks from a notional 648 down
// to exactly 544 entries).
func computeDifferentials(m meanMatrix) []int16 {
	diffs := make([]int16, 0, signatureLength)
	for i := 0; i < numGridPoints; i++ {
		for j := 0; j < numGridPoints; j++ {
			center := m[i*numGridPoints+j]
			for _, off := range neighborOffsets {
				if v, ok := m.at(i+off[0], j+off[1]); ok {
					diffs = append(diffs, int16(v)-int16(center))
				}
			}
		}
	}
	return diffs
}

// quantise discretises the raw differentials into 5 levels
// {-2,-1,0,1,2} using per-image robust quantiles: the darkest and
// lightest halves of the "significant" differences (|diff| >
// identicalTolerance) are each split at their median into two bins,
// with the remaining near-zero differences forming the centre bin
// (spec.md §4.C step 4).
func quantise(diffs []int16) Signature {
	darkCutoffs := computeCutoffs(diffs, func(d int16) bool { return d < -identicalTolerance })
	lightCutoffs := computeCutoffs(diffs, func(d int16) bool { return d > identicalTolerance })

	type cutoff struct {
		value int16
		valid bool
	}
	cutoffs := make([]cutoff, 0, numSymbols)
	for _, c := range darkCutoffs {
		cutoffs = append(cutoffs, cutoff{c, true})
	}
	cutoffs = append(cutoffs, cutoff{identicalTolerance, true})
	for _, c := range lightCutoffs {
		cutoffs = append(cutoffs, cutoff{c, true})
	}

	var sig Signature
	for idx, d := range diffs {
		level := -1
		for pos, c := range cutoffs {
			if c.valid && d <= c.value {
				level = pos
				break
			}
		}
		if level == -1 {
			level = len(cutoffs) - 1
		}
		sig[idx] = int8(level - luminanceLevels)
	}
	return sig
}

// computeCutoffs sorts the differentials passing filter ascending and
// returns the last element of each of luminanceLevels equal-ish
// chunks, giving per-image quantile boundaries rather than fixed
// thresholds.
func computeCutoffs(diffs []int16, filter func(int16) bool) []int16 {
	var filtered []int16
	for _, d := range diffs {
		if filter(d) {
			filtered = append(filtered, d)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i] < filtered[j] })

	if len(filtered) == 0 {
		return nil
	}
	chunkSize := len(filtered) / luminanceLevels
	if len(filtered)%luminanceLevels != 0 {
		chunkSize++
	}
	var cutoffs []int16
	for i := 0; i < len(filtered); i += chunkSize {
		end := i + chunkSize
		if end > len(filtered) {
			end = len(filtered)
		}
		cutoffs = append(cutoffs, filtered[end-1])
	}
	return cutoffs
}

// Distance is the L2-normalised Euclidean distance between two
// signatures, in [0,1] (spec.md §4.C: "Distance between two
// signatures... divided by the norm of their concatenation").
func Distance(a, b Signature) float64 {
	var sqDist, normA, normB int64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		sqDist += d * d
		normA += int64(a[i]) * int64(a[i])
		normB += int64(b[i]) * int64(b[i])
	}
	denom := math.Sqrt(float64(normA)) + math.Sqrt(float64(normB))
	if denom == 0 {
		return 0
	}
	return math.Sqrt(float64(sqDist)) / denom
}

// Words derives the 100 coarse-index words of spec.md §4.C step 6:
// each word concatenates 16 signature entries at fixed, evenly spaced
// offsets, clamped to a 3-symbol alphabet {-1,0,1} and packed base-3
// into a content value; the word's position among the 100 offsets is
// packed into the high bits so that set-overlap across two posts'
// `words` arrays only ever matches identical (index, content) pairs.
// This bit layout is an explicit amendment over
// original_source/server/src/image/signature.rs's generate_indexes
// (which emits the bare base-3 content with no index tag): a 16-letter
// base-3 value can exceed 25 bits, so the content half is folded
// (modulo 2^25) before packing — still deterministic and still only
// equal for genuinely identical word content, which is all overlap
// search requires.
func Words(sig Signature) []int32 {
	positions := linspace(0, signatureLength-numLetters, numWords)
	words := make([]int32, numWords)
	for wordIdx, pos := range positions {
		var content int32
		pow := int32(1)
		for letter := 0; letter < numLetters; letter++ {
			v := int8(sig[pos+letter])
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			content += int32(v+1) * pow
			pow *= 3
		}
		content &= (1 << wordContentBits) - 1
		words[wordIdx] = int32(wordIdx&((1<<wordIndexBits)-1))<<wordContentBits | content
	}
	return words
}
