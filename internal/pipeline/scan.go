package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HThanh-how/mkvprocesser/internal/config"
)

// Scan lists candidate media files under folder in lexical order. Hidden
// entries, in-progress ".part" files and anything under skipDirs (the output
// folders, which may live inside the input) are ignored. Callers reject an
// output folder equal to folder itself; see config.ValidateInputFolder.
func Scan(folder string, scan config.Scan, skipDirs ...string) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", folder)
	}

	exts := make(map[string]struct{}, len(scan.Extensions))
	for _, ext := range scan.Extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	skip := make(map[string]struct{}, len(skipDirs))
	root := filepath.Clean(folder)
	for _, dir := range skipDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			skip[filepath.Clean(dir)] = struct{}{}
		}
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subfolders are skipped rather than failing the scan.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !scan.Recursive || strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			if _, ok := skip[path]; ok {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".part") || !d.Type().IsRegular() {
			return nil
		}
		if len(exts) > 0 {
			if _, ok := exts[strings.ToLower(filepath.Ext(name))]; !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, fs.SkipAll) {
		return nil, fmt.Errorf("scan %s: %w", folder, walkErr)
	}
	sort.Strings(files)
	return files, nil
}
