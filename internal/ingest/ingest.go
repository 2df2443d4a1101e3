// Package ingest turns files on disk into pipeline inputs: single reads,
// directory walks and a debounced filesystem watcher.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

// LoadedFile is a file read from disk and ready for the pipeline.
type LoadedFile struct {
	Path    string
	Input   *entity.DocumentInput
	HashHex string
	ModTime time.Time
}

// ReadFile loads path into a DocumentInput with a fresh file ID and the
// MIME type implied by its extension. An unknown extension leaves MimeType
// empty for the validation gate to sniff. Files over the size limit are not
// read; their Size is set so the validation gate rejects them.
func ReadFile(path string) (LoadedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return LoadedFile{}, fmt.Errorf("abs path: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return LoadedFile{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return LoadedFile{}, fmt.Errorf("stat: %w", err)
	}
	if st.IsDir() {
		return LoadedFile{}, fmt.Errorf("%s is a directory", abs)
	}

	in := &entity.DocumentInput{
		FileID:   uuid.NewString(),
		FileName: filepath.Base(abs),
		MimeType: constants.MimeForExt(filepath.Ext(abs)),
		Size:     st.Size(),
	}
	out := LoadedFile{Path: abs, Input: in, ModTime: st.ModTime()}
	if st.Size() > constants.MaxFileSizeBytes {
		in.Data = []byte{}
		return out, nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return LoadedFile{}, fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(data)
	in.Data = data
	out.HashHex = hex.EncodeToString(sum[:])
	return out, nil
}
