package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Disk stores attachment blobs below a root directory. Paths handed out
// are relative to the root.
type Disk struct {
	root string
}

func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{root: root}, nil
}

// Save writes r to a new blob for issueID and returns its relative path
// and size.
func (d *Disk) Save(issueID int64, name string, r io.Reader) (string, int64, error) {
	dir := strconv.FormatInt(issueID, 10)
	if err := os.MkdirAll(filepath.Join(d.root, dir), 0755); err != nil {
		return "", 0, fmt.Errorf("create issue dir: %w", err)
	}
	rel := filepath.Join(dir, uuid.NewString()+"_"+sanitize(name))

	dst, err := os.OpenFile(filepath.Join(d.root, rel), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("create blob: %w", err)
	}
	size, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filepath.Join(d.root, rel))
		return "", 0, fmt.Errorf("write blob: %w", err)
	}
	return rel, size, nil
}

func (d *Disk) Open(rel string) (*os.File, error) {
	path, err := d.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// Remove deletes the blob. A missing blob is not an error.
func (d *Disk) Remove(rel string) error {
	path, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (d *Disk) resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid blob path %q", rel)
	}
	return filepath.Join(d.root, rel), nil
}

func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
