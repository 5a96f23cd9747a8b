// pkg/utils/system.go

package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexmullins/zip"
)

// RunningAsRoot checks if the tool is running with root/sudo privileges
func RunningAsRoot() bool {
	return os.Geteuid() == 0
}

// IsPrivileged checks whether commands run through exec have root
// privileges on the inspected host.
func IsPrivileged(ctx context.Context, exec CommandExecutor) bool {
	if _, ok := exec.(*LocalExecutor); ok {
		return RunningAsRoot()
	}
	out, err := exec.RunCommand(ctx, "id", "-u")
	return err == nil && strings.TrimSpace(out) == "0"
}

// BundleWithPassword writes the given files into one password-protected
// zip archive at zipPath. Missing files are skipped.
func BundleWithPassword(zipPath, password string, files ...string) (string, error) {
	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	added := 0
	for _, path := range files {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := addEncrypted(zipWriter, path, password); err != nil {
			zipWriter.Close()
			return "", err
		}
		added++
	}

	if err := zipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize zip: %w", err)
	}
	if added == 0 {
		return "", fmt.Errorf("no files to bundle")
	}
	return zipPath, nil
}

func addEncrypted(zw *zip.Writer, path, password string) error {
	sourceFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	writer, err := zw.Encrypt(filepath.Base(path), password)
	if err != nil {
		return fmt.Errorf("failed to create encrypted entry: %w", err)
	}

	if _, err := io.Copy(writer, sourceFile); err != nil {
		return fmt.Errorf("failed to write to zip: %w", err)
	}
	return nil
}
