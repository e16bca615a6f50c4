package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestResolveOutputPath(t *testing.T) {
	out := filepath.FromSlash("/srv/out")
	tests := []struct {
		dest string
		want string
		err  bool
	}{
		{"out/copy.bin", "/srv/out/out/copy.bin", false},
		{"/etc/passwd", "/srv/out/etc/passwd", false},
		{"../../etc/passwd", "/srv/out/etc/passwd", false},
		{"a/../../b", "/srv/out/b", false},
		{"", "", true},
		{"/", "", true},
		{"..", "", true},
		{"a\x00b", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveOutputPath(out, tt.dest)
		if tt.err {
			if !errors.Is(err, ErrUnsafePath) {
				t.Errorf("%q: expected ErrUnsafePath, got %v", tt.dest, err)
			}
			continue
		}
		if err != nil || got != filepath.FromSlash(tt.want) {
			t.Errorf("%q: got %q %v, want %q", tt.dest, got, err, tt.want)
		}
	}
}

func TestWriteAllBytes(t *testing.T) {
	dir := t.TempDir()
	data := []byte("reassembled")
	path, err := WriteAllBytes(dir, "nested/dir/file.txt", data)
	if err != nil {
		t.Fatalf("write failed %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("read back %q %v", got, err)
	}
	// 覆盖已存在的文件
	if _, err := WriteAllBytes(dir, "nested/dir/file.txt", []byte("x")); err != nil {
		t.Fatalf("overwrite failed %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestCalMD5(t *testing.T) {
	sum, err := CalMD5(strings.NewReader("hello"))
	if err != nil || sum != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("got %s %v", sum, err)
	}
}

func TestFormatBytesCount(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		2500:    "2.4 KiB",
		5 << 20: "5.0 MiB",
	}
	for n, want := range tests {
		if got := FormatBytesCount(n); got != want {
			t.Errorf("FormatBytesCount(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestGetConfInt(t *testing.T) {
	v := viper.New()
	v.Set("a", "1 << 10")
	v.Set("b", 1000)
	v.Set("c", "ten")
	if n, err := GetConfInt(v, "a"); err != nil || n != 1024 {
		t.Errorf("a: %d %v", n, err)
	}
	if n, err := GetConfInt(v, "b"); err != nil || n != 1000 {
		t.Errorf("b: %d %v", n, err)
	}
	if _, err := GetConfInt(v, "c"); err == nil {
		t.Errorf("c: expected error")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("load failed %v", err)
	}
	if cfg.PacketSize != 1000 || cfg.Client.InitialTimeout != 200*time.Millisecond || cfg.Server.Port != 9000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Redis.Addr != "" || cfg.Log.Level != "info" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	content := `
protocol:
  packetSize: 1 << 9
client:
  maxAttempts: 5
  initialTimeout: 50ms
server:
  outputDir: /tmp/rdt
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RDT_SERVER_PORT", "9100")

	cfg, err := LoadConfig(viper.New(), file)
	if err != nil {
		t.Fatalf("load failed %v", err)
	}
	if cfg.PacketSize != 512 || cfg.Client.MaxAttempts != 5 || cfg.Client.InitialTimeout != 50*time.Millisecond {
		t.Errorf("file values not applied %+v", cfg)
	}
	if cfg.Server.OutputDir != "/tmp/rdt" || cfg.Server.Port != 9100 {
		t.Errorf("server config %+v", cfg.Server)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	v := viper.New()
	v.Set(KeyPacketSize, 10)
	v.Set(KeyTransportDropRate, 1.5)
	if _, err := LoadConfig(v, ""); err == nil {
		t.Errorf("expected validation error")
	}
	if _, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
