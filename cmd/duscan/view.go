package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/duscan/duscan/pkg/duscanerrors"
	"github.com/duscan/duscan/pkg/scan"
	"github.com/duscan/duscan/pkg/sink"
)

// underPath reports whether entryPath is subdir itself or nested beneath it.
// Both arguments are assumed to already be normalized, forward-slash paths.
func underPath(entryPath, subdir string) bool {
	if subdir == "" {
		return true
	}
	if entryPath == subdir {
		return true
	}
	return strings.HasPrefix(entryPath, subdir+"/")
}

// directorySet computes, from a full snapshot's entries, the set of paths
// that have at least one other entry naming them as a parent. IsDirectory
// isn't part of the persisted column schema (see pkg/sink/codec.go), so
// after a round-trip it's always false; this reconstructs it from the
// parent/child structure that is persisted. A directory with no surviving
// children (an empty leaf directory, or one whose sole children are below
// --max-depth) is indistinguishable from a file by this signal alone and
// is reported as "file".
func directorySet(entries []scan.DirectoryEntry) map[string]bool {
	dirs := make(map[string]bool)
	for _, entry := range entries {
		if entry.ParentPath != "" {
			dirs[entry.ParentPath] = true
		}
	}
	return dirs
}

func sortEntries(entries []scan.DirectoryEntry, key string) error {
	var less func(i, j int) bool
	switch key {
	case "", "size":
		less = func(i, j int) bool { return entries[i].SizeBytes > entries[j].SizeBytes }
	case "files":
		less = func(i, j int) bool { return entries[i].FileCount > entries[j].FileCount }
	case "dirs":
		less = func(i, j int) bool { return entries[i].DirCount > entries[j].DirCount }
	default:
		return errors.Errorf("invalid sort key %q (expected \"size\", \"files\", or \"dirs\")", key)
	}
	sort.SliceStable(entries, less)
	return nil
}

type viewRow struct {
	Path      string `json:"path"`
	SizeBytes uint64 `json:"size_bytes"`
	FileCount uint64 `json:"file_count"`
	DirCount  uint64 `json:"dir_count"`
}

func viewMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return duscanerrors.New(duscanerrors.InvalidInput, errors.New("view requires exactly one snapshot file argument"))
	}

	file, err := os.Open(arguments[0])
	if err != nil {
		return duscanerrors.New(duscanerrors.Io, errors.Wrap(err, "unable to open snapshot"))
	}
	defer file.Close()

	snapshot, err := sink.ReadSnapshot(file)
	if err != nil {
		return duscanerrors.New(duscanerrors.Io, errors.Wrap(err, "unable to read snapshot"))
	}

	filtered := snapshot.Entries[:0:0]
	for _, entry := range snapshot.Entries {
		if underPath(entry.Path, viewConfiguration.path) {
			filtered = append(filtered, entry)
		}
	}

	if err := sortEntries(filtered, viewConfiguration.sort); err != nil {
		return duscanerrors.New(duscanerrors.InvalidInput, err)
	}

	if viewConfiguration.top > 0 && len(filtered) > viewConfiguration.top {
		filtered = filtered[:viewConfiguration.top]
	}

	if viewConfiguration.json {
		rows := make([]viewRow, len(filtered))
		for i, entry := range filtered {
			rows[i] = viewRow{
				Path:      entry.Path,
				SizeBytes: entry.SizeBytes,
				FileCount: entry.FileCount,
				DirCount:  entry.DirCount,
			}
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(rows); err != nil {
			return duscanerrors.New(duscanerrors.Io, errors.Wrap(err, "unable to encode JSON output"))
		}
		return nil
	}

	fmt.Printf(
		"Snapshot of %s (strategy %s, basis %s, %d errors)\n",
		snapshot.Metadata.ScanRoot, snapshot.Metadata.Strategy, snapshot.Metadata.Basis, len(snapshot.Errors),
	)
	dirs := directorySet(snapshot.Entries)
	for _, entry := range filtered {
		kind := "file"
		if dirs[entry.Path] {
			kind = "dir"
		}
		fmt.Printf(
			"  %-8s %10s  files=%-6d dirs=%-6d %s\n",
			kind, humanize.Bytes(entry.SizeBytes), entry.FileCount, entry.DirCount, entry.Path,
		)
	}

	return nil
}

var viewCommand = &cobra.Command{
	Use:   "view <SNAPSHOT>",
	Short: "Render aggregates from a previously written snapshot",
	Run:   duscanMainify(viewMain),
}

var viewConfiguration struct {
	// path restricts output to entries at or beneath this normalized subdir.
	path string
	// top limits output to the first K entries after sorting. 0 means
	// unlimited.
	top int
	// sort selects the sort key ("size", "files", or "dirs").
	sort string
	// json causes output to be rendered as a JSON array instead of a table.
	json bool
}

func init() {
	flags := viewCommand.Flags()
	flags.SortFlags = false

	flags.StringVar(&viewConfiguration.path, "path", "", "Restrict output to entries at or beneath this subdirectory")
	flags.IntVar(&viewConfiguration.top, "top", 0, "Limit output to the top K entries (0 for unlimited)")
	flags.StringVar(&viewConfiguration.sort, "sort", "size", "Sort key (\"size\", \"files\", or \"dirs\")")
	flags.BoolVar(&viewConfiguration.json, "json", false, "Render output as a JSON array")
}
