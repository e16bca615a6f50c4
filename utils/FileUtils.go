package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsafePath = errors.New("unsafe destination path")

// ReadAllBytes 读取整个文件
func ReadAllBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// ResolveOutputPath 将对端提供的路径限制在 outputDir 之内
func ResolveOutputPath(outputDir, dest string) (string, error) {
	if strings.TrimSpace(dest) == "" || strings.ContainsRune(dest, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, dest)
	}
	cleaned := filepath.Clean("/" + filepath.ToSlash(dest))
	if cleaned == "/" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, dest)
	}
	return filepath.Join(outputDir, filepath.FromSlash(cleaned)), nil
}

// WriteAllBytes 将重组后的文件写入 outputDir 下的 dest，先写临时文件再重命名
func WriteAllBytes(outputDir, dest string, data []byte) (string, error) {
	path, err := ResolveOutputPath(outputDir, dest)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".part-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return path, nil
}

// FormatBytesCount 以 KiB/MiB 形式输出字节数
func FormatBytesCount(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
