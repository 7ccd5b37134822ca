package tool

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/analystmesh/core"
)

// FileToolName is the name agents use to read user provided data.
const FileToolName = "read_provided_data"

// FileToolOptions configures NewFileTool.
type FileToolOptions struct {
	// BaseDir restricts local paths to a directory tree. Empty allows any path.
	BaseDir string
	// MaxRows truncates large files. Zero disables truncation.
	MaxRows int
}

type fileArgs struct {
	Path string `json:"path" description:"Local CSV path or artifact:// reference of an uploaded file"`
}

// NewFileTool builds the read_provided_data tool. Paths prefixed with
// artifact:// are resolved against the session's data-file store; other
// paths are read from disk.
func NewFileTool(optFns ...func(o *FileToolOptions)) *FunctionTool {
	opts := FileToolOptions{MaxRows: 1000}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewFunctionToolFromStruct(
		FileToolName,
		"Read a CSV data file provided by the user and return its rows.",
		fileArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (core.Table, error) {
			path := strings.TrimSpace(args["path"].(string))
			if path == "" {
				return core.Table{}, validationError(FileToolName, fmt.Errorf("path is empty"))
			}
			if err := toolCtx.Context().Err(); err != nil {
				return core.Table{}, err
			}

			data, err := readSource(toolCtx, opts.BaseDir, path)
			if err != nil {
				return core.Table{}, err
			}
			tbl, err := ParseCSV(bytes.NewReader(data))
			if err != nil {
				return core.Table{}, err
			}
			if opts.MaxRows > 0 && tbl.Len() > opts.MaxRows {
				tbl = tbl.Head(opts.MaxRows)
			}
			return tbl, nil
		},
	)
}

func readSource(toolCtx *core.ToolContext, baseDir, path string) ([]byte, error) {
	if id, ok := strings.CutPrefix(path, core.DataFileRefPrefix); ok {
		data, err := toolCtx.LoadDataFile(id)
		if err != nil {
			return nil, fmt.Errorf("load data file %s: %w", id, err)
		}
		return data, nil
	}

	if baseDir != "" {
		rel, err := filepath.Rel(baseDir, filepath.Join(baseDir, path))
		if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(path) {
			return nil, validationError(FileToolName, fmt.Errorf("path %q escapes data directory", path))
		}
		path = filepath.Join(baseDir, rel)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, validationError(FileToolName, fmt.Errorf("file %q not found", path))
	}
	if info.IsDir() {
		return nil, validationError(FileToolName, fmt.Errorf("%q is a directory", path))
	}
	return os.ReadFile(path)
}

// ParseCSV reads a CSV document with a header row into a Table. Cells are
// kept as strings; empty cells become nil.
func ParseCSV(r io.Reader) (core.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return core.Table{}, fmt.Errorf("csv: empty document")
	}
	if err != nil {
		return core.Table{}, fmt.Errorf("csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	tbl := core.Table{Columns: header, Rows: [][]any{}}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return core.Table{}, fmt.Errorf("csv row %d: %w", tbl.Len()+1, err)
		}
		row := make([]any, len(header))
		for i := range header {
			if i < len(rec) && rec[i] != "" {
				row[i] = rec[i]
			}
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, nil
}
