// Dead letter storage for batches the uploader gave up on.
// Each file is a blake2b-256 digest followed by the zstd compressed JSON record.
package spool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"segmentd/internal/collector/buffer"
	"segmentd/pkg/protocol"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// Reused across calls, both are safe for concurrent use
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("spool: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("spool: zstd decoder initialization failed: " + err.Error())
	}
}

// Opens (creating if needed) a spool directory
func New(dir string) (store *Store, err error) {
	if dir == "" {
		err = fmt.Errorf("spool directory is required")
		return
	}
	err = os.MkdirAll(dir, dirMode)
	if err != nil {
		err = fmt.Errorf("failed to create spool directory: %w", err)
		return
	}
	store = &Store{Dir: dir}
	return
}

// Writes the batch atomically (temp file then rename) and returns its path
func (store *Store) Store(batch *buffer.Batch, reason string) (path string, err error) {
	record := Record{
		Sequence:  batch.Sequence,
		CreatedAt: batch.CreatedAt,
		SpooledAt: time.Now().UTC(),
		Reason:    reason,
		Documents: make([]string, 0, len(batch.Segments)),
	}
	for _, segment := range batch.Segments {
		record.Documents = append(record.Documents, segment.DocumentString())
	}

	content, err := Encode(record)
	if err != nil {
		return
	}

	store.mu.Lock()
	store.seq++
	name := fmt.Sprintf("%020d-%06d-%d%s", record.SpooledAt.UnixNano(), store.seq, batch.Sequence, fileSuffix)
	store.mu.Unlock()

	path = filepath.Join(store.Dir, name)
	tmp := path + tmpSuffix

	err = os.WriteFile(tmp, content, fileMode)
	if err != nil {
		err = fmt.Errorf("failed to write spool file: %w", err)
		return
	}
	err = os.Rename(tmp, path)
	if err != nil {
		os.Remove(tmp)
		err = fmt.Errorf("failed to commit spool file: %w", err)
		return
	}
	return
}

// Spool files, oldest first
func (store *Store) List() (paths []string, err error) {
	entries, err := os.ReadDir(store.Dir)
	if err != nil {
		err = fmt.Errorf("failed to read spool directory: %w", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(store.Dir, entry.Name()))
	}
	sort.Strings(paths)
	return
}

// Reads and verifies one spool file
func Load(path string) (record Record, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read spool file: %w", err)
		return
	}
	record, err = Decode(content)
	if err != nil {
		err = fmt.Errorf("spool file %s: %w", filepath.Base(path), err)
		return
	}
	return
}

func (store *Store) Remove(path string) (err error) {
	err = os.Remove(path)
	if err != nil {
		err = fmt.Errorf("failed to remove spool file: %w", err)
	}
	return
}

// Serializes, compresses and prefixes the digest
func Encode(record Record) (content []byte, err error) {
	plain, err := json.Marshal(record)
	if err != nil {
		err = fmt.Errorf("failed to serialize spool record: %w", err)
		return
	}

	compressed := zstdEncoder.EncodeAll(plain, nil)
	digest := blake2b.Sum256(compressed)

	content = make([]byte, 0, digestSize+len(compressed))
	content = append(content, digest[:]...)
	content = append(content, compressed...)
	return
}

func Decode(content []byte) (record Record, err error) {
	if len(content) <= digestSize {
		err = fmt.Errorf("spool content too short (%d bytes)", len(content))
		return
	}

	compressed := content[digestSize:]
	digest := blake2b.Sum256(compressed)
	if !bytes.Equal(digest[:], content[:digestSize]) {
		err = fmt.Errorf("spool content digest mismatch")
		return
	}

	plain, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		err = fmt.Errorf("zstd decompress: %w", err)
		return
	}

	err = json.Unmarshal(plain, &record)
	if err != nil {
		err = fmt.Errorf("failed to parse spool record: %w", err)
		return
	}
	return
}

// Rebuilds the batch by decoding every stored document again
func (record Record) Batch() (batch *buffer.Batch, err error) {
	batch = &buffer.Batch{
		Sequence:  record.Sequence,
		CreatedAt: record.CreatedAt,
		Segments:  make([]*protocol.Segment, 0, len(record.Documents)),
	}
	for i, document := range record.Documents {
		segment, decodeErr := protocol.DecodeDocument([]byte(document))
		if decodeErr != nil {
			err = fmt.Errorf("document %d: %w", i, decodeErr)
			return
		}
		batch.Segments = append(batch.Segments, segment)
		batch.Bytes += segment.Size()
	}
	return
}
