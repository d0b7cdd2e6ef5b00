// Package modelingest turns a precomputed embedding matrix into relation
// records: one composition per vocabulary token, and a relation for every
// pair of tokens whose L2-normalized embeddings are cosine-similar enough.
package modelingest

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path"

	"github.com/hartonomous/substrate/internal/objectstore"
)

// vocabFile and matrixFile are the two objects a model package must
// contain under its package directory prefix.
const (
	vocabFile  = "vocab.txt"
	matrixFile = "embeddings.bin"
)

// matrixHeaderSize is the fixed 8-byte (rows, cols) uint32 little-endian
// header preceding the row-major float32 payload.
const matrixHeaderSize = 8

// loadVocab reads a newline-delimited token list from packageDir/vocab.txt.
// Blank lines are skipped; order is significant, since row i of the matrix
// corresponds to vocabulary entry i.
func loadVocab(ctx context.Context, store objectstore.ObjectStore, packageDir string) ([]string, error) {
	rc, _, err := store.Get(ctx, path.Join(packageDir, vocabFile))
	if err != nil {
		return nil, fmt.Errorf("modelingest: load vocab: %w", err)
	}
	defer rc.Close()

	var vocab []string
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		vocab = append(vocab, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("modelingest: scan vocab: %w", err)
	}
	return vocab, nil
}

// loadMatrix reads packageDir/embeddings.bin: an 8-byte (rows, cols)
// little-endian uint32 header, followed by rows*cols IEEE-754 float32
// values in row-major, little-endian order.
func loadMatrix(ctx context.Context, store objectstore.ObjectStore, packageDir string) (rows, cols int, data []float64, err error) {
	rc, _, err := store.Get(ctx, path.Join(packageDir, matrixFile))
	if err != nil {
		return 0, 0, nil, fmt.Errorf("modelingest: load matrix: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("modelingest: read matrix: %w", err)
	}
	if len(raw) < matrixHeaderSize {
		return 0, 0, nil, fmt.Errorf("modelingest: matrix file shorter than header")
	}

	r := int(binary.LittleEndian.Uint32(raw[0:4]))
	c := int(binary.LittleEndian.Uint32(raw[4:8]))
	want := matrixHeaderSize + r*c*4
	if len(raw) != want {
		return 0, 0, nil, fmt.Errorf("modelingest: matrix file is %d bytes, expected %d for %d x %d", len(raw), want, r, c)
	}

	out := make([]float64, r*c)
	for i := range out {
		off := matrixHeaderSize + i*4
		bits := binary.LittleEndian.Uint32(raw[off : off+4])
		out[i] = float64(math.Float32frombits(bits))
	}
	return r, c, out, nil
}
