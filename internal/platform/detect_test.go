package platform

import (
	"context"
	"runtime"
	"testing"
)

// MockDetector is a test implementation of Detector.
type MockDetector struct {
	info *Info
	err  error
}

// NewMockDetector creates a mock detector with specified return values.
func NewMockDetector(info *Info, err error) Detector {
	return &MockDetector{info: info, err: err}
}

// Detect returns the pre-configured info and error.
func (m *MockDetector) Detect(ctx context.Context) (*Info, error) {
	return m.info, m.err
}

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.Arch == "" {
		t.Error("Arch should not be empty")
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if runtime.GOOS != "linux" && (info.Platform != "" || info.Version != "") {
		t.Errorf("distro fields set on %s: %+v", runtime.GOOS, info)
	}
}

func TestInfo_String(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"linux with distro", Info{OS: "linux", Arch: "amd64", Platform: "ubuntu", Version: "22.04"}, "linux/amd64 (ubuntu 22.04)"},
		{"linux without version", Info{OS: "linux", Arch: "arm64", Platform: "arch"}, "linux/arm64 (arch)"},
		{"macOS", Info{OS: "darwin", Arch: "arm64"}, "darwin/arm64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfo_OSMethods(t *testing.T) {
	tests := []struct {
		os                      string
		linux, macOS, isWindows bool
	}{
		{"linux", true, false, false},
		{"darwin", false, true, false},
		{"windows", false, false, true},
		{"freebsd", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.os, func(t *testing.T) {
			info := &Info{OS: tt.os}
			if info.IsLinux() != tt.linux || info.IsMacOS() != tt.macOS || info.IsWindows() != tt.isWindows {
				t.Errorf("IsLinux/IsMacOS/IsWindows = %v/%v/%v", info.IsLinux(), info.IsMacOS(), info.IsWindows())
			}
		})
	}
}
