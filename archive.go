package devstore

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// packArchive zips the file or directory at path into memory.
//
// A single file becomes one entry named after its base name. A
// directory is walked and every regular file is stored under its
// slash-separated path relative to the directory root. Entries are
// deflate-compressed.
func packArchive(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, ErrNoSuchPath
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	switch {
	case info.Mode().IsRegular():
		if err := addFileEntry(zw, path, filepath.Base(path)); err != nil {
			zw.Close()
			return nil, err
		}
	case info.IsDir():
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(path, p)
			if err != nil {
				return err
			}
			return addFileEntry(zw, p, filepath.ToSlash(rel))
		})
		if err != nil {
			zw.Close()
			return nil, &ArchiveError{Path: path, Err: err}
		}
	default:
		zw.Close()
		return nil, &ArchiveError{Path: path, Err: fmt.Errorf("path is neither a file nor a directory")}
	}

	if err := zw.Close(); err != nil {
		return nil, &ArchiveError{Path: path, Err: err}
	}
	return buf.Bytes(), nil
}

func addFileEntry(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return &ArchiveError{Path: path, Err: err}
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return &ArchiveError{Path: path, Err: err}
	}
	if _, err := io.Copy(w, f); err != nil {
		return &ArchiveError{Path: path, Err: err}
	}
	return nil
}

// extractArchive unpacks zip data into dest, creating directories as
// needed. Entry names that would escape dest are rejected.
func extractArchive(data []byte, dest string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &ArchiveError{Path: dest, Err: err}
	}

	for _, entry := range zr.File {
		name := filepath.FromSlash(entry.Name)
		if !filepath.IsLocal(name) {
			return &ArchiveError{Path: dest, Err: fmt.Errorf("unsafe entry name %q", entry.Name)}
		}
		target := filepath.Join(dest, name)

		if entry.FileInfo().IsDir() || strings.HasSuffix(entry.Name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &ArchiveError{Path: target, Err: err}
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &ArchiveError{Path: target, Err: err}
		}
		if err := writeEntry(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(entry *zip.File, target string) error {
	in, err := entry.Open()
	if err != nil {
		return &ArchiveError{Path: target, Err: err}
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return &ArchiveError{Path: target, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &ArchiveError{Path: target, Err: err}
	}
	return out.Close()
}
