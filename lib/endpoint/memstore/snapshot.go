package memstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ValentinKolb/kvcopy/lib/endpoint/codec"
)

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Snapshot file layout (little endian):
//
//   - magic number and version
//   - 8 bytes: entry count
//   - per entry: 4 bytes key length, key, 8 bytes expireAt (unix ns),
//     4 bytes blob length, blob (codec.Marshal of the record)
const (
	snapshotMagic   = "KVCOPYMEM\x00"
	snapshotVersion = 1

	// maxSnapshotKeyLen is the largest key accepted by Load (the redis limit)
	maxSnapshotKeyLen = 512 * 1024 * 1024
)

// Snapshotter is implemented by every endpoint returned from NewMemoryStore
type Snapshotter interface {
	Save(w io.Writer) error
	Load(r io.Reader) error
}

// Save writes all live entries to w.
// Concurrent reading and writing is allowed during Save.
func (s *storeImpl) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	type entryToSave struct {
		key string
		e   entry
	}

	// Collect snapshots of all shards
	now := s.now()
	var entries []entryToSave
	for _, sh := range s.shards {
		sh.data.Range(func(key string, e entry) bool {
			if e.live(now) {
				entries = append(entries, entryToSave{key: key, e: e})
			}
			return true
		})
	}

	// Write file header
	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	// Write entries
	for _, item := range entries {
		blob, err := codec.Marshal(s.codec, item.e.rec)
		if err != nil {
			return fmt.Errorf("encode %q: %w", item.key, err)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.e.expireAt); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(blob))); err != nil {
			return err
		}
		if _, err := bw.Write(blob); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load restores entries from r. Existing keys are overwritten, entries that
// have already expired are skipped.
func (s *storeImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != snapshotMagic {
		return fmt.Errorf("invalid snapshot format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %d (expected %d)", version, snapshotVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	now := s.now()
	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		if keyLen > maxSnapshotKeyLen {
			return fmt.Errorf("invalid snapshot: key length %d of entry %d exceeds %d", keyLen, i, maxSnapshotKeyLen)
		}
		key, err := readChunk(br, keyLen)
		if err != nil {
			return err
		}

		var expireAt int64
		if err := binary.Read(br, binary.LittleEndian, &expireAt); err != nil {
			return err
		}

		var blobLen uint32
		if err := binary.Read(br, binary.LittleEndian, &blobLen); err != nil {
			return err
		}
		blob, err := readChunk(br, blobLen)
		if err != nil {
			return err
		}

		e := entry{expireAt: expireAt}
		if !e.live(now) {
			continue
		}
		rec, err := codec.Unmarshal(s.codec, blob)
		if err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		e.rec = rec

		if err := s.compute(string(key), func(_ entry, _ bool) (entry, bool, error) {
			return e, false, nil
		}); err != nil {
			return err
		}
	}

	return nil
}

// readChunk reads exactly n bytes. The buffer grows with the data actually
// read, so a forged length in a truncated file does not allocate n bytes.
func readChunk(r io.Reader, n uint32) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, err
	}
	if len(b) != int(n) {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}

// loadFile loads the snapshot at path, a missing file is not an error
func (s *storeImpl) loadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		Logger.Infof("snapshot %s does not exist yet, starting empty", path)
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.Load(f); err != nil {
		return fmt.Errorf("load snapshot %s: %w", path, err)
	}
	Logger.Infof("loaded snapshot %s", path)
	return nil
}

// saveFile atomically replaces the snapshot at path
func (s *storeImpl) saveFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
