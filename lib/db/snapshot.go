package db

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ValentinKolb/dFeed/lib/timeline"
)

// --------------------------------------------------------------------------
// Snapshot Format (shared by all engines)
// --------------------------------------------------------------------------

/*
	Layout (little endian):

	magic       8 bytes  "DFEEDTL\x00"
	version     1 byte
	count       8 bytes  number of timelines
	per timeline:
	  keyLen    4 bytes
	  key       keyLen bytes
	  idCount   4 bytes
	  ids       idCount * 8 bytes, ascending
*/

const (
	snapshotMagic   = "DFEEDTL\x00"
	snapshotVersion = 1
)

// SnapshotEntry is a single timeline inside a snapshot.
type SnapshotEntry struct {
	Key string
	IDs []timeline.StatusID // ascending
}

// WriteSnapshot writes all entries to w.
// The format is engine independent, so a snapshot saved by one engine can be loaded by another.
func WriteSnapshot(w io.Writer, entries []SnapshotEntry) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(entry.Key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(entry.Key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(entry.IDs))); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, entry.IDs); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ReadSnapshot reads a snapshot from r and calls fn for every timeline in it.
// Reading stops at the first error returned by fn.
func ReadSnapshot(r io.Reader, fn func(entry SnapshotEntry) error) error {
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

	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var idCount uint32
		if err := binary.Read(br, binary.LittleEndian, &idCount); err != nil {
			return err
		}
		ids := make([]timeline.StatusID, idCount)
		if err := binary.Read(br, binary.LittleEndian, ids); err != nil {
			return err
		}

		if err := fn(SnapshotEntry{Key: string(key), IDs: ids}); err != nil {
			return err
		}
	}

	return nil
}
