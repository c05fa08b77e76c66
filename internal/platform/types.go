// Package platform detects the host and locates the client installation.
//
// Detection uses gopsutil for distribution details on Linux and falls back
// to OS and architecture alone when that fails. The Locator turns the
// detected OS into a list of conventional install directories and picks the
// first one that exists, unless a root was configured explicitly.
package platform

import "context"

// Info describes the host.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // normalized, e.g. "amd64"
	ArchRaw  string // GOARCH as reported
	Platform string // distro ID on Linux, e.g. "ubuntu"
	Version  string // distro version on Linux
}

// IsLinux reports whether the host runs Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS reports whether the host runs macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows reports whether the host runs Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// String renders the host for version output, e.g. "linux/amd64 (ubuntu 22.04)".
func (i *Info) String() string {
	s := i.OS + "/" + i.Arch
	if i.Platform != "" {
		s += " (" + i.Platform
		if i.Version != "" {
			s += " " + i.Version
		}
		s += ")"
	}
	return s
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
