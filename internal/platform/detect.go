package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector against the running host.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect reports the running OS and architecture. On Linux it also asks
// gopsutil for the distribution; a failed lookup leaves those fields empty
// unless ctx was cancelled.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		Arch:    normalizeArch(runtime.GOARCH),
		ArchRaw: runtime.GOARCH,
	}

	if runtime.GOOS != "linux" {
		return info, nil
	}

	platform, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}
	info.Platform = normalizePlatform(platform)
	if info.Platform != "" {
		info.Version = normalizePlatform(version)
	}
	return info, nil
}
