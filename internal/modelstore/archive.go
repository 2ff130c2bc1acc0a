package modelstore

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArchiveExtension is the portable package file extension.
const ArchiveExtension = ".senati"

var (
	// ErrBadArchive is returned for archives without a valid descriptor.
	ErrBadArchive = errors.New("invalid package archive")
)

const packageInfoFile = "package_info.json"

// PackageInfo is the top-level descriptor of a portable archive. Unknown
// fields are ignored on import; a missing format_version or model_type
// rejects the archive.
type PackageInfo struct {
	FormatVersion string `json:"format_version"`
	ModelType     string `json:"model_type"` // ml | dl
	ModelName     string `json:"model_name"`
	ExportedBy    string `json:"exported_by"`
	ExportDate    string `json:"export_date"`
}

// Export writes the package as a .senati zip archive: every package file
// plus the top-level package_info descriptor.
func (s *Store) Export(slug string, w io.Writer) error {
	dir, isDeep, err := s.find(slug)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	defer zw.Close()

	modelType := "ml"
	if isDeep {
		modelType = "dl"
	}
	info := PackageInfo{
		FormatVersion: FormatVersion,
		ModelType:     modelType,
		ModelName:     slug,
		ExportedBy:    "cv-clasification",
		ExportDate:    time.Now().UTC().Format(time.RFC3339),
	}
	infoJSON, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	f, err := zw.Create(packageInfoFile)
	if err != nil {
		return err
	}
	if _, err := f.Write(infoJSON); err != nil {
		return err
	}

	return filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		dst, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(dst, src)
		return err
	})
}

// ExportToFile exports the package to a .senati file on disk.
func (s *Store) ExportToFile(slug, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()
	return s.Export(slug, f)
}

// Import installs a .senati archive under newSlug. The archive descriptor
// decides the family root. An existing slug is a conflict unless overwrite
// is set; replacement is atomic (extract to a temp sibling, then rename).
func (s *Store) Import(archivePath, newSlug string, overwrite bool) (*Metadata, error) {
	if err := validSlug(newSlug); err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer zr.Close()

	info, err := readPackageInfo(&zr.Reader)
	if err != nil {
		return nil, err
	}

	lock := s.slugLock(newSlug)
	lock.Lock()
	defer lock.Unlock()

	isDeep := info.ModelType == "dl"
	root := s.root(isDeep)
	target := filepath.Join(root, newSlug)

	if s.Exists(newSlug) && !overwrite {
		existing, metaErr := s.GetMetadata(newSlug)
		if metaErr != nil {
			return nil, ErrConflict
		}
		return existing, ErrConflict
	}

	tmp, err := os.MkdirTemp(root, ".import-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	for _, zf := range zr.File {
		name := filepath.FromSlash(zf.Name)
		if name == packageInfoFile {
			continue
		}
		// Zip-slip guard.
		dst := filepath.Join(tmp, name)
		if !strings.HasPrefix(dst, tmp+string(os.PathSeparator)) {
			return nil, fmt.Errorf("%w: unsafe entry %q", ErrBadArchive, zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}
		if err := extractFile(zf, dst); err != nil {
			return nil, err
		}
	}

	meta := &Metadata{}
	if err := readJSON(filepath.Join(tmp, metadataFile), meta); err != nil {
		return nil, fmt.Errorf("%w: archive has no package metadata", ErrBadArchive)
	}
	meta.Name = newSlug
	if err := writeJSON(filepath.Join(tmp, metadataFile), meta); err != nil {
		return nil, err
	}

	// Clear both roots so an overwrite across families cannot leave a stale
	// same-slug package shadowing the imported one.
	if err := s.clear(newSlug); err != nil {
		return nil, fmt.Errorf("failed to replace package: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return nil, fmt.Errorf("failed to install package: %w", err)
	}
	return meta, nil
}

func readPackageInfo(zr *zip.Reader) (*PackageInfo, error) {
	for _, zf := range zr.File {
		if zf.Name != packageInfoFile {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		info := &PackageInfo{}
		if err := json.NewDecoder(rc).Decode(info); err != nil {
			return nil, fmt.Errorf("%w: unreadable descriptor", ErrBadArchive)
		}
		if info.FormatVersion == "" {
			return nil, fmt.Errorf("%w: missing format_version", ErrBadArchive)
		}
		if info.ModelType != "ml" && info.ModelType != "dl" {
			return nil, fmt.Errorf("%w: unsupported model_type %q", ErrBadArchive, info.ModelType)
		}
		return info, nil
	}
	return nil, fmt.Errorf("%w: missing %s", ErrBadArchive, packageInfoFile)
}

func extractFile(zf *zip.File, dst string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, rc)
	return err
}
