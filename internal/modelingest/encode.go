package modelingest

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"path"
	"strings"

	"github.com/hartonomous/substrate/internal/objectstore"
)

// WriteModelPackage serializes vocab and the row-major matrix rows into the
// vocab.txt/embeddings.bin layout IngestModel reads, and puts them under
// packageDir in store. Used by callers assembling a package from an
// in-process matrix (e.g. a training pipeline), and by this package's own
// tests.
func WriteModelPackage(ctx context.Context, store objectstore.ObjectStore, packageDir string, vocab []string, rows [][]float32) error {
	vocabBody := strings.Join(vocab, "\n")
	if _, err := store.Put(ctx, path.Join(packageDir, vocabFile), strings.NewReader(vocabBody), objectstore.PutOptions{}); err != nil {
		return err
	}

	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	buf := make([]byte, matrixHeaderSize+len(rows)*cols*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(rows)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cols))
	for i, row := range rows {
		for j, v := range row {
			off := matrixHeaderSize + (i*cols+j)*4
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		}
	}
	_, err := store.Put(ctx, path.Join(packageDir, matrixFile), bytes.NewReader(buf), objectstore.PutOptions{})
	return err
}
