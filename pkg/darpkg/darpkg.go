// Package darpkg builds Daml packages and locates the DAR files they produce.
package darpkg

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Fairmint/canton/pkg/shared"
)

const (
	DefaultVersion = "0.0.1"
	manifestName   = "daml.yaml"
)

// Runner executes name with args in dir.
type Runner func(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) error

// ExecRunner runs the command as a child process.
func ExecRunner(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

type BuildOptions struct {
	// SrcDir holds one directory per package.
	SrcDir  string
	Package string
	// Verbose streams the build output to Stdout and Stderr.
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Runner  Runner
	Logger  *zap.Logger
}

// Manifest is the part of daml.yaml this package reads.
type Manifest struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ReadManifest parses daml.yaml in packagePath.
func ReadManifest(packagePath string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(packagePath, manifestName))
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to read %s", manifestName)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to parse %s in %s", manifestName, packagePath)
	}
	if manifest.Version == "" {
		manifest.Version = DefaultVersion
	}
	return manifest, nil
}

// Build runs `daml build` for the package and returns its directory.
func Build(ctx context.Context, opts BuildOptions) (string, error) {
	if opts.Package == "" {
		return "", errors.New("package name is required")
	}
	packagePath := filepath.Join(opts.SrcDir, opts.Package)
	if info, err := os.Stat(packagePath); err != nil || !info.IsDir() {
		return "", errors.Errorf("package directory not found: %s", packagePath)
	}
	if _, err := os.Stat(filepath.Join(packagePath, manifestName)); err != nil {
		return "", errors.Errorf("%s not found in package: %s", manifestName, packagePath)
	}

	logger := shared.LoggerOrNop(opts.Logger)
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner
	}

	var stdout, stderr io.Writer
	var captured bytes.Buffer
	if opts.Verbose {
		stdout, stderr = writerOr(opts.Stdout, os.Stdout), writerOr(opts.Stderr, os.Stderr)
	} else {
		stdout, stderr = io.Discard, &captured
	}

	logger.Info("building package", zap.String("package", opts.Package), zap.String("path", packagePath))
	if err := runner(ctx, packagePath, stdout, stderr, "daml", "build"); err != nil {
		if output := strings.TrimSpace(captured.String()); output != "" {
			return "", errors.Wrapf(err, "failed to build package %s: %s", opts.Package, output)
		}
		return "", errors.Wrapf(err, "failed to build package %s", opts.Package)
	}
	logger.Info("built package", zap.String("package", opts.Package))
	return packagePath, nil
}

func writerOr(w io.Writer, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

// FindDAR returns the DAR for name in packagePath/.daml/dist. The file
// named after the manifest version wins; otherwise the lexically last .dar
// is used.
func FindDAR(packagePath string, name string, logger *zap.Logger) (string, error) {
	distPath := filepath.Join(packagePath, ".daml", "dist")
	if _, err := os.Stat(distPath); err != nil {
		return "", errors.Errorf("build output directory not found: %s", distPath)
	}

	version := DefaultVersion
	if manifest, err := ReadManifest(packagePath); err == nil {
		version = manifest.Version
	}
	expected := filepath.Join(distPath, name+"-"+version+".dar")
	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	}

	entries, err := os.ReadDir(distPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list %s", distPath)
	}
	var dars []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".dar") {
			dars = append(dars, entry.Name())
		}
	}
	if len(dars) == 0 {
		return "", errors.Errorf("no .dar file found in %s", distPath)
	}
	sort.Strings(dars)
	last := dars[len(dars)-1]
	if len(dars) > 1 {
		shared.LoggerOrNop(logger).Warn("multiple .dar files found, using last one",
			zap.String("dir", distPath), zap.String("dar", last))
	}
	return filepath.Join(distPath, last), nil
}
