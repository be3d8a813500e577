package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"media-normalizer/internal/runstore"
)

// ErrOutputInsideInput is returned when the output tree would be rediscovered
// as input on the next run.
var ErrOutputInsideInput = errors.New("output directory must not be inside input directory")

// OutputContainer is the extension every converted file gets.
const OutputContainer = ".mp4"

// SourceFile is one discovered input.
type SourceFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Discover walks inputDir for files whose extension is in extensions
// (case-insensitive) and returns them largest first, ties broken by path.
func Discover(inputDir string, extensions []string) ([]SourceFile, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		allowed[strings.ToLower(e)] = true
	}

	var files []SourceFile
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if runstore.IsLockPath(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		files = append(files, SourceFile{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover media in %s: %w", inputDir, err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Size != files[j].Size {
			return files[i].Size > files[j].Size
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// TotalSize sums the sizes of files.
func TotalSize(files []SourceFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// OutputPath mirrors file's location below inputDir into outputDir and swaps
// the extension for OutputContainer. It does not create directories.
func OutputPath(inputDir, outputDir, file string) (string, error) {
	rel, err := filepath.Rel(inputDir, file)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", file, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not below %s", file, inputDir)
	}
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(outputDir, base+OutputContainer), nil
}

// ResolveDirs makes both directories absolute with symlinks resolved. The
// output directory is created; a missing input directory is created too and
// reported through createdInput so the caller can tell the operator where to
// put files.
func ResolveDirs(inputDir, outputDir string) (inputAbs, outputAbs string, createdInput bool, err error) {
	if _, statErr := os.Stat(inputDir); os.IsNotExist(statErr) {
		if err := runstore.Mkdir(inputDir); err != nil {
			return "", "", false, err
		}
		createdInput = true
	}
	inputAbs, err = absPath(inputDir)
	if err != nil {
		return "", "", false, fmt.Errorf("resolve input directory %s: %w", inputDir, err)
	}
	if err := runstore.Mkdir(outputDir); err != nil {
		return "", "", false, err
	}
	outputAbs, err = absPath(outputDir)
	if err != nil {
		return "", "", false, fmt.Errorf("resolve output directory %s: %w", outputDir, err)
	}
	if err := ValidatePaths(inputAbs, outputAbs); err != nil {
		return "", "", false, err
	}
	return inputAbs, outputAbs, createdInput, nil
}

// ValidatePaths rejects an output directory equal to or nested in the input.
func ValidatePaths(inputAbs, outputAbs string) error {
	in := filepath.Clean(inputAbs)
	out := filepath.Clean(outputAbs)
	sep := string(filepath.Separator)
	if out == in || strings.HasPrefix(out+sep, in+sep) {
		return fmt.Errorf("%w: %s is within %s", ErrOutputInsideInput, outputAbs, inputAbs)
	}
	return nil
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
