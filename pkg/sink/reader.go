package sink

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/duscan/duscan/pkg/scan"
)

// Snapshot is the fully decoded contents of a snapshot file.
type Snapshot struct {
	Metadata scan.SnapshotMeta
	Entries  []scan.DirectoryEntry
	Errors   []scan.ErrorItem
}

// ReadSnapshot walks every row group in r, classifying each row by which
// column cluster is non-null, and reconstructs the three streams. It does
// not assume entries and errors were written in any particular row-group
// order, but requires exactly one metadata row.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	reader := bufio.NewReader(r)

	var snapshot Snapshot
	var sawMetadata bool

	for {
		row, err := decodeRow(reader)
		if err == io.EOF {
			break
		} else if err != nil {
			return Snapshot{}, errors.Wrap(err, "unable to decode snapshot row")
		}

		switch {
		case row.isMeta:
			if sawMetadata {
				return Snapshot{}, errors.New("snapshot contains more than one metadata row")
			}
			snapshot.Metadata = row.meta
			sawMetadata = true
		case row.isError:
			snapshot.Errors = append(snapshot.Errors, row.errItem)
		case row.isEntry:
			snapshot.Entries = append(snapshot.Entries, row.entry)
		}
	}

	if !sawMetadata {
		return Snapshot{}, errors.New("snapshot is missing its metadata row")
	}

	return snapshot, nil
}
