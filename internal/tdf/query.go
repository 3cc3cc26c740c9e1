package tdf

import (
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Query evaluates a gjson path against a persisted TDF document without
// decoding it into Dataset/Row structs — the read path behind
// `sdpl inspect <file> --path <gjson-path>` (SPEC_FULL.md domain stack),
// distinct from Load's full materialization.
func Query(path, gjsonPath string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &IoError{Op: "query", Path: path, Err: err}
	}
	result := gjson.GetBytes(data, gjsonPath)
	if !result.Exists() {
		return "", nil
	}
	return result.String(), nil
}

// SetTitleMeta patches the meta.title field of an existing TDF document in
// place, without re-encoding the whole row set, then rewrites the file
// atomically. Used when a TITLE statement re-stamps an already-published
// dataset (SPEC_FULL.md domain stack).
func SetTitleMeta(path, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &IoError{Op: "set-title", Path: path, Err: err}
	}
	patched, err := sjson.SetBytes(data, "meta.title", title)
	if err != nil {
		return &IoError{Op: "set-title", Path: path, Err: err}
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tdf-tmp-*")
	if err != nil {
		return &IoError{Op: "set-title", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(patched); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IoError{Op: "set-title", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IoError{Op: "set-title", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &IoError{Op: "set-title", Path: path, Err: err}
	}
	return nil
}
