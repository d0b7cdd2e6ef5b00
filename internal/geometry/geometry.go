// Package geometry implements the S³ (unit 3-sphere) point type, centroid
// and trajectory operations, and the 4-dimensional order-32 Hilbert
// space-filling curve used to index those points.
package geometry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// normEpsilon is the norm floor below which a sum-of-points is considered
// degenerate (e.g. exactly antipodal contributions cancelling out) and the
// (1,0,0,0) fallback point is substituted instead.
const normEpsilon = 1e-10

// Point is a point on S³: a unit 4-vector (W, X, Y, Z), equivalently a unit
// quaternion. Index 0 is W, 1 is X, 2 is Y, 3 is Z.
type Point [4]float64

// Identity is the fallback point substituted whenever normalization would
// otherwise divide by (approximately) zero.
var Identity = Point{1, 0, 0, 0}

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 {
	return math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2] + p[3]*p[3])
}

// Normalize returns p/‖p‖, or Identity if ‖p‖ <= normEpsilon.
func Normalize(p Point) Point {
	n := p.Norm()
	if n <= normEpsilon {
		return Identity
	}
	return Point{p[0] / n, p[1] / n, p[2] / n, p[3] / n}
}

// Bytes returns the 32-byte little-endian IEEE-754 encoding of p's four
// components (W, X, Y, Z in order), used as identity-hash input. This is
// distinct from the Point ZM WKB wire format the store uses to persist
// geometry columns.
func (p Point) Bytes() []byte {
	b := make([]byte, 32)
	for i, c := range p {
		binary.LittleEndian.PutUint64(b[i*8:i*8+8], math.Float64bits(c))
	}
	return b
}

// wkbPointType and wkbLineStringType are the little-endian WKB type codes
// for the ZM (Z + M dimension) variants of Point and LineString.
const (
	wkbPointType      uint32 = 0xC0000001
	wkbLineStringType uint32 = 0xC0000002
)

// WKB encodes p as a 37-byte little-endian WKB Point ZM: 1 endian byte,
// 4-byte type code, then X, Y, Z, M as IEEE-754 doubles. The quaternion's
// vector part (p[1], p[2], p[3]) maps to X, Y, Z; the scalar part p[0]
// carries through as the M ordinate, so the mapping is lossless and
// reversible via PointFromWKB.
func (p Point) WKB() []byte {
	b := make([]byte, 37)
	b[0] = 0x01
	binary.LittleEndian.PutUint32(b[1:5], wkbPointType)
	binary.LittleEndian.PutUint64(b[5:13], math.Float64bits(p[1]))
	binary.LittleEndian.PutUint64(b[13:21], math.Float64bits(p[2]))
	binary.LittleEndian.PutUint64(b[21:29], math.Float64bits(p[3]))
	binary.LittleEndian.PutUint64(b[29:37], math.Float64bits(p[0]))
	return b
}

// PointFromWKB decodes a 37-byte WKB Point ZM back into a Point, the
// inverse of Point.WKB.
func PointFromWKB(b []byte) (Point, error) {
	if len(b) != 37 {
		return Point{}, fmt.Errorf("geometry: wkb point must be 37 bytes, got %d", len(b))
	}
	if b[0] != 0x01 {
		return Point{}, fmt.Errorf("geometry: wkb point must be little-endian")
	}
	if t := binary.LittleEndian.Uint32(b[1:5]); t != wkbPointType {
		return Point{}, fmt.Errorf("geometry: unexpected wkb type %#x", t)
	}
	x := math.Float64frombits(binary.LittleEndian.Uint64(b[5:13]))
	y := math.Float64frombits(binary.LittleEndian.Uint64(b[13:21]))
	z := math.Float64frombits(binary.LittleEndian.Uint64(b[21:29]))
	m := math.Float64frombits(binary.LittleEndian.Uint64(b[29:37]))
	return Point{m, x, y, z}, nil
}

// TrajectoryWKB encodes points as a WKB LineString ZM: 1 endian byte,
// 4-byte type code, 4-byte little-endian point count, then each point's
// X/Y/Z/M in order (the same per-point layout as Point.WKB, without its
// own header). An empty trajectory encodes as a zero-point LineString,
// never a separate "absent" representation.
func TrajectoryWKB(points []Point) []byte {
	b := make([]byte, 9+32*len(points))
	b[0] = 0x01
	binary.LittleEndian.PutUint32(b[1:5], wkbLineStringType)
	binary.LittleEndian.PutUint32(b[5:9], uint32(len(points)))
	for i, p := range points {
		off := 9 + 32*i
		binary.LittleEndian.PutUint64(b[off:off+8], math.Float64bits(p[1]))
		binary.LittleEndian.PutUint64(b[off+8:off+16], math.Float64bits(p[2]))
		binary.LittleEndian.PutUint64(b[off+16:off+24], math.Float64bits(p[3]))
		binary.LittleEndian.PutUint64(b[off+24:off+32], math.Float64bits(p[0]))
	}
	return b
}

// TrajectoryFromWKB decodes a WKB LineString ZM back into its points, the
// inverse of TrajectoryWKB.
func TrajectoryFromWKB(b []byte) ([]Point, error) {
	if len(b) < 9 {
		return nil, fmt.Errorf("geometry: wkb linestring header must be at least 9 bytes, got %d", len(b))
	}
	if b[0] != 0x01 {
		return nil, fmt.Errorf("geometry: wkb linestring must be little-endian")
	}
	if t := binary.LittleEndian.Uint32(b[1:5]); t != wkbLineStringType {
		return nil, fmt.Errorf("geometry: unexpected wkb type %#x", t)
	}
	n := binary.LittleEndian.Uint32(b[5:9])
	want := 9 + 32*int(n)
	if len(b) != want {
		return nil, fmt.Errorf("geometry: wkb linestring expected %d bytes for %d points, got %d", want, n, len(b))
	}
	points := make([]Point, n)
	for i := range points {
		off := 9 + 32*i
		x := math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
		y := math.Float64frombits(binary.LittleEndian.Uint64(b[off+8 : off+16]))
		z := math.Float64frombits(binary.LittleEndian.Uint64(b[off+16 : off+24]))
		m := math.Float64frombits(binary.LittleEndian.Uint64(b[off+24 : off+32]))
		points[i] = Point{m, x, y, z}
	}
	return points, nil
}

// Add returns the component-wise sum of a and b.
func Add(a, b Point) Point {
	return Point{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

// Scale returns p with every component multiplied by s.
func Scale(p Point, s float64) Point {
	return Point{p[0] * s, p[1] * s, p[2] * s, p[3] * s}
}

// Centroid sums points then renormalizes, falling back to Identity when the
// sum's norm is below normEpsilon (e.g. perfectly antipodal contributions).
func Centroid(points ...Point) Point {
	var sum Point
	for _, p := range points {
		sum = Add(sum, p)
	}
	return Normalize(sum)
}

// Decimate reduces a trajectory to at most 16 evenly spaced points. Given n
// points with n <= 16, it returns them unchanged. Otherwise it returns
// exactly 16 points at indices floor(i*(n-1)/15) for i = 0..15; the result
// always starts at points[0] and ends at points[n-1].
func Decimate(points []Point) []Point {
	if len(points) <= 16 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	n := len(points)
	out := make([]Point, 16)
	for i := 0; i < 16; i++ {
		idx := (i * (n - 1)) / 15
		out[i] = points[idx]
	}
	return out
}

// EntityType tags which namespace a Hilbert index belongs to. The tag is
// folded into the top 2 bits of the index's high 64-bit word so that
// indices for different entity kinds never compare as adjacent, while the
// remaining 126 bits stay monotone along the curve within one entity type.
type EntityType uint8

const (
	EntityAtom EntityType = iota
	EntityComposition
	EntityRelation
)

// Index is a 128-bit Hilbert curve index, stored as a big-endian pair of
// 64-bit words (Hi holds the more significant 64 bits).
type Index struct {
	Hi uint64
	Lo uint64
}

// Bytes returns the 16-byte big-endian encoding of idx (Hi then Lo).
func (idx Index) Bytes() []byte {
	b := make([]byte, 16)
	putUint64BE(b[0:8], idx.Hi)
	putUint64BE(b[8:16], idx.Lo)
	return b
}

func putUint64BE(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}

const hilbertOrder = 32 // bits per axis; 4 axes * 32 bits = 128-bit index

// quantize maps a component known to lie in [-1, 1] onto a 32-bit unsigned
// integer lattice coordinate in [0, 2^32-1].
func quantize(v float64) uint32 {
	frac := (v + 1) / 2
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return uint32(math.Round(frac * float64(math.MaxUint32)))
}

// Encode projects p onto the order-32, 4-dimensional Hilbert curve and folds
// et into the top 2 bits of the resulting index's high word.
func Encode(p Point, et EntityType) Index {
	x := [4]uint64{
		uint64(quantize(p[0])),
		uint64(quantize(p[1])),
		uint64(quantize(p[2])),
		uint64(quantize(p[3])),
	}
	axesToTranspose(&x, hilbertOrder)

	var hi, lo uint64
	bitPos := 127
	for j := hilbertOrder - 1; j >= 0; j-- {
		for d := 0; d < 4; d++ {
			bit := (x[d] >> uint(j)) & 1
			if bitPos >= 64 {
				hi |= bit << uint(bitPos-64)
			} else {
				lo |= bit << uint(bitPos)
			}
			bitPos--
		}
	}

	hi = (hi &^ (uint64(0b11) << 62)) | (uint64(et&0b11) << 62)
	return Index{Hi: hi, Lo: lo}
}

// axesToTranspose implements the Hamilton/Skilling axes-to-transpose
// transform in place: X holds n=4 axis coordinates of b significant bits
// each on entry; on return X holds the Hilbert-transposed form (still n
// words of b bits, now to be read off bit-plane by bit-plane).
func axesToTranspose(x *[4]uint64, b int) {
	n := 4
	m := uint64(1) << uint(b-1)

	for q := m; q > 1; q >>= 1 {
		p := q - 1
		for i := 0; i < n; i++ {
			if x[i]&q != 0 {
				x[0] ^= p
			} else {
				t := (x[0] ^ x[i]) & p
				x[0] ^= t
				x[i] ^= t
			}
		}
	}

	for i := 1; i < n; i++ {
		x[i] ^= x[i-1]
	}

	var t uint64
	for q := m; q > 1; q >>= 1 {
		if x[n-1]&q != 0 {
			t ^= q - 1
		}
	}
	for i := 0; i < n; i++ {
		x[i] ^= t
	}
}
