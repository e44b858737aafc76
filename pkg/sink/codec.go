package sink

import (
	"bufio"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/scan"
)

// unixNano reconstructs a time.Time from a Unix-epoch nanosecond count.
func unixNano(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// writeString writes a length-prefixed UTF-8 string.
func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// readString reads a length-prefixed UTF-8 string.
func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	buffer := make([]byte, length)
	if _, err := io.ReadFull(r, buffer); err != nil {
		return "", err
	}
	return string(buffer), nil
}

// encodeEntryRow writes a single DirectoryEntry row. ParentPath is written
// only when non-empty (null for the scan root).
func encodeEntryRow(w *bufio.Writer, entry scan.DirectoryEntry) error {
	bitmask := columnEntryPath | columnEntryDepth | columnEntrySizeBytes |
		columnEntryFileCount | columnEntryDirCount
	if entry.ParentPath != "" {
		bitmask |= columnEntryParentPath
	}

	if err := binary.Write(w, binary.BigEndian, bitmask); err != nil {
		return err
	}
	if err := writeString(w, entry.Path); err != nil {
		return err
	}
	if bitmask&columnEntryParentPath != 0 {
		if err := writeString(w, entry.ParentPath); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.BigEndian, entry.Depth); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, entry.SizeBytes); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, entry.FileCount); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, entry.DirCount)
}

// encodeErrorRow writes a single ErrorItem row.
func encodeErrorRow(w *bufio.Writer, item scan.ErrorItem) error {
	bitmask := columnErrorPath | columnErrorCode | columnErrorMessage
	if err := binary.Write(w, binary.BigEndian, bitmask); err != nil {
		return err
	}
	if err := writeString(w, item.Path); err != nil {
		return err
	}
	if err := w.WriteByte(byte(item.Code)); err != nil {
		return err
	}
	return writeString(w, item.Message)
}

// encodeMetaRow writes the single SnapshotMeta row.
func encodeMetaRow(w *bufio.Writer, meta scan.SnapshotMeta) error {
	bitmask := metaColumns
	if err := binary.Write(w, binary.BigEndian, bitmask); err != nil {
		return err
	}
	if err := writeString(w, meta.ScanRoot); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, meta.StartedAt.UnixNano()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, meta.FinishedAt.UnixNano()); err != nil {
		return err
	}
	if err := w.WriteByte(byte(meta.Basis)); err != nil {
		return err
	}
	if err := w.WriteByte(byte(meta.HardlinkPolicy)); err != nil {
		return err
	}
	return w.WriteByte(byte(meta.Strategy))
}

// decodedRow holds whichever fields were present in one decoded row. Exactly
// one of isEntry, isError, isMeta is true.
type decodedRow struct {
	isEntry bool
	entry   scan.DirectoryEntry
	isError bool
	errItem scan.ErrorItem
	isMeta  bool
	meta    scan.SnapshotMeta
}

// decodeRow reads and classifies a single row from r, per the column-cluster
// discriminator described in §4.5: a row is metadata if its scan-root column
// is present, an error if its error-path column is present, and an entry
// otherwise.
func decodeRow(r io.Reader) (decodedRow, error) {
	var bitmask uint16
	if err := binary.Read(r, binary.BigEndian, &bitmask); err != nil {
		return decodedRow{}, err
	}

	switch {
	case bitmask&columnMetaScanRoot != 0:
		return decodeMetaRow(r, bitmask)
	case bitmask&columnErrorPath != 0:
		return decodeErrorRow(r, bitmask)
	default:
		return decodeEntryRow(r, bitmask)
	}
}

func decodeEntryRow(r io.Reader, bitmask uint16) (decodedRow, error) {
	var entry scan.DirectoryEntry
	var err error

	if entry.Path, err = readString(r); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read entry path")
	}
	if bitmask&columnEntryParentPath != 0 {
		if entry.ParentPath, err = readString(r); err != nil {
			return decodedRow{}, errors.Wrap(err, "unable to read entry parent path")
		}
	}
	if err = binary.Read(r, binary.BigEndian, &entry.Depth); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read entry depth")
	}
	if err = binary.Read(r, binary.BigEndian, &entry.SizeBytes); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read entry size")
	}
	if err = binary.Read(r, binary.BigEndian, &entry.FileCount); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read entry file count")
	}
	if err = binary.Read(r, binary.BigEndian, &entry.DirCount); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read entry dir count")
	}

	return decodedRow{isEntry: true, entry: entry}, nil
}

func decodeErrorRow(r io.Reader, _ uint16) (decodedRow, error) {
	var item scan.ErrorItem
	var err error

	if item.Path, err = readString(r); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read error path")
	}
	var code byte
	if code, err = readByte(r); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read error code")
	}
	item.Code = scan.ErrorCode(code)
	if item.Message, err = readString(r); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read error message")
	}

	return decodedRow{isError: true, errItem: item}, nil
}

func decodeMetaRow(r io.Reader, _ uint16) (decodedRow, error) {
	var meta scan.SnapshotMeta
	var err error

	if meta.ScanRoot, err = readString(r); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read scan root")
	}
	var startedAtNanos, finishedAtNanos int64
	if err = binary.Read(r, binary.BigEndian, &startedAtNanos); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read start time")
	}
	if err = binary.Read(r, binary.BigEndian, &finishedAtNanos); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read finish time")
	}
	meta.StartedAt = unixNano(startedAtNanos)
	meta.FinishedAt = unixNano(finishedAtNanos)

	var basis, policy, strategy byte
	if basis, err = readByte(r); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read size basis")
	}
	if policy, err = readByte(r); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read hardlink policy")
	}
	if strategy, err = readByte(r); err != nil {
		return decodedRow{}, errors.Wrap(err, "unable to read strategy")
	}
	meta.Basis = scan.SizeBasis(basis)
	meta.HardlinkPolicy = scan.HardlinkPolicy(policy)
	meta.Strategy = scan.StrategyKind(strategy)

	return decodedRow{isMeta: true, meta: meta}, nil
}

// readByte reads a single byte from r without requiring it to implement
// io.ByteReader.
func readByte(r io.Reader) (byte, error) {
	var buffer [1]byte
	if _, err := io.ReadFull(r, buffer[:]); err != nil {
		return 0, err
	}
	return buffer[0], nil
}
