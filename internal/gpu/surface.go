package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SurfaceSetup is the negotiated surface configuration.
type SurfaceSetup struct {
	Format      gputypes.TextureFormat
	AlphaMode   gputypes.CompositeAlphaMode
	PresentMode gputypes.PresentMode
}

// ChooseSurfaceFormat picks the first sRGB format the surface supports,
// falling back to the first format. Opaque alpha is preferred; the present
// mode is always FIFO, which every surface supports.
func ChooseSurfaceFormat(caps *hal.SurfaceCapabilities) (SurfaceSetup, error) {
	if caps == nil || len(caps.Formats) == 0 {
		return SurfaceSetup{}, fmt.Errorf("gpu: surface reports no formats")
	}
	s := SurfaceSetup{
		Format:      caps.Formats[0],
		AlphaMode:   gputypes.CompositeAlphaModeOpaque,
		PresentMode: gputypes.PresentModeFifo,
	}
	for _, f := range caps.Formats {
		if f.IsSrgb() {
			s.Format = f
			break
		}
	}
	if len(caps.AlphaModes) > 0 {
		s.AlphaMode = caps.AlphaModes[0]
		for _, m := range caps.AlphaModes {
			if m == gputypes.CompositeAlphaModeOpaque {
				s.AlphaMode = m
				break
			}
		}
	}
	return s, nil
}

// configureSurface applies the setup at the given size. Zero dimensions
// are raised to 1.
func configureSurface(device hal.Device, surface hal.Surface, s SurfaceSetup, w, h uint32) error {
	err := surface.Configure(device, &hal.SurfaceConfiguration{
		Width:       max(w, 1),
		Height:      max(h, 1),
		Format:      s.Format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: s.PresentMode,
		AlphaMode:   s.AlphaMode,
	})
	if err != nil {
		return fmt.Errorf("configure surface %dx%d: %w", w, h, err)
	}
	return nil
}
