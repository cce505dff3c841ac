package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// pingPong holds two same-sized textures of which one is written and the
// other read each frame. The roles swap with the parity of the frame
// counter.
type pingPong struct {
	tex    [2]hal.Texture
	view   [2]hal.TextureView
	width  uint32
	height uint32
	format gputypes.TextureFormat
}

// writeIndex returns the texture written on the given frame.
func writeIndex(frame uint32) int { return int(frame & 1) }

// readIndex returns the texture read on the given frame, i.e. the one
// written on the previous frame.
func readIndex(frame uint32) int { return 1 - writeIndex(frame) }

// ensure creates or recreates both textures if the requested size differs
// from the current one. If the size matches and textures exist, this is a
// no-op. It reports whether textures were (re)created.
func (pp *pingPong) ensure(device hal.Device, w, h uint32, format gputypes.TextureFormat, label string) (bool, error) {
	if pp.width == w && pp.height == h && pp.format == format && pp.tex[0] != nil {
		return false, nil
	}
	pp.destroy(device)

	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}
	for i := range pp.tex {
		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("%s_%d", label, i),
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
		})
		if err != nil {
			pp.destroy(device)
			return false, fmt.Errorf("create %s texture %d: %w", label, i, err)
		}
		pp.tex[i] = tex

		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: fmt.Sprintf("%s_%d_view", label, i),
		})
		if err != nil {
			pp.destroy(device)
			return false, fmt.Errorf("create %s view %d: %w", label, i, err)
		}
		pp.view[i] = view
	}

	pp.width = w
	pp.height = h
	pp.format = format
	return true, nil
}

// destroy releases both textures and resets the size.
func (pp *pingPong) destroy(device hal.Device) {
	for i := len(pp.tex) - 1; i >= 0; i-- {
		if pp.view[i] != nil {
			device.DestroyTextureView(pp.view[i])
			pp.view[i] = nil
		}
		if pp.tex[i] != nil {
			device.DestroyTexture(pp.tex[i])
			pp.tex[i] = nil
		}
	}
	pp.width = 0
	pp.height = 0
}
