package k8s

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// untarAll extracts a tar stream produced by "tar cf - <remotePath>" inside
// a container, mapping the archive root onto localPath. Entries outside the
// requested path and entries that would escape localPath are rejected.
func untarAll(reader io.Reader, remotePath, localPath string) error {
	prefix := path.Clean(strings.TrimPrefix(remotePath, "/"))
	tr := tar.NewReader(reader)

	extracted := 0
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		name := path.Clean(strings.TrimPrefix(header.Name, "./"))

		var dest string
		switch {
		case name == prefix:
			dest = localPath
		case strings.HasPrefix(name, prefix+"/"):
			rel := name[len(prefix)+1:]
			if rel == ".." || strings.HasPrefix(rel, "../") || strings.Contains(rel, "/../") {
				return fmt.Errorf("tar entry %q would escape destination", header.Name)
			}
			dest = filepath.Join(localPath, filepath.FromSlash(rel))
		default:
			// tar on some images emits a leading directory entry for
			// the archive root's parents; nothing to extract for it.
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// Symlinks and special files are not recreated locally;
			// following links from an untrusted archive is unsafe.
			continue
		}
		extracted++
	}

	if extracted == 0 {
		return fmt.Errorf("archive for %s contained no extractable entries", remotePath)
	}
	return nil
}
