package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sentinel/frame"
)

// Simulation state dimensions: one particle per texel.
const (
	StateWidth  = 256
	StateHeight = 128
)

// simFormat is the format of both ping-pong pairs.
const simFormat = gputypes.TextureFormatRGBA32Float

// ErrFatal wraps render errors after which the pipeline cannot continue.
var ErrFatal = errors.New("gpu: fatal render error")

// FrameStatus reports what a Render call did.
type FrameStatus int

const (
	// FramePresented means the frame was submitted and presented.
	FramePresented FrameStatus = iota
	// FrameSkipped means no surface texture was available; nothing was
	// drawn and the frame counter did not advance.
	FrameSkipped
)

// String returns the status name.
func (s FrameStatus) String() string {
	switch s {
	case FramePresented:
		return "presented"
	case FrameSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("FrameStatus(%d)", int(s))
	}
}

// PipelineConfig configures a FeedbackPipeline.
type PipelineConfig struct {
	// Width and Height are the initial surface size. Zero is raised to 1.
	Width, Height uint32

	// Surface is the negotiated surface configuration. A zero Format
	// means the caller has not negotiated one; the pipeline then uses
	// BGRA8Unorm with opaque alpha and FIFO presentation.
	Surface SurfaceSetup

	// Tuning seeds the uniform buffer before the first frame. The zero
	// value means frame.DefaultTuning.
	Tuning frame.Tuning
}

// FeedbackPipeline owns every GPU resource of the overlay renderer: the
// uniform buffer, three stage pipelines, the state and render ping-pong
// pairs and the bind groups selecting them.
//
// FeedbackPipeline is not safe for concurrent use; it lives on the frame
// loop goroutine.
type FeedbackPipeline struct {
	device  hal.Device
	queue   hal.Queue
	surface hal.Surface
	setup   SurfaceSetup

	uniformBuffer hal.Buffer

	simShader     hal.ShaderModule
	renderShader  hal.ShaderModule
	presentShader hal.ShaderModule

	uniformLayout hal.BindGroupLayout
	simTexLayout  hal.BindGroupLayout
	renderLayout  hal.BindGroupLayout
	presentLayout hal.BindGroupLayout

	simPipeLayout     hal.PipelineLayout
	renderPipeLayout  hal.PipelineLayout
	presentPipeLayout hal.PipelineLayout

	simPipeline     hal.RenderPipeline
	renderPipeline  hal.RenderPipeline
	presentPipeline hal.RenderPipeline

	state  pingPong
	render pingPong

	uniformGroup hal.BindGroup
	simGroups    [2]hal.BindGroup
	renderGroups [2]hal.BindGroup
	presentGrps  [2]hal.BindGroup

	width, height uint32
	frame         uint32
	scratch       []byte
	destroyed     bool
}

// NewFeedbackPipeline creates every GPU resource and configures the
// surface. On failure everything created so far is released.
func NewFeedbackPipeline(device hal.Device, queue hal.Queue, surface hal.Surface, cfg PipelineConfig) (*FeedbackPipeline, error) {
	if device == nil || queue == nil || surface == nil {
		return nil, fmt.Errorf("gpu: device, queue and surface are required")
	}
	setup := cfg.Surface
	if setup.Format == gputypes.TextureFormatUndefined {
		setup = SurfaceSetup{
			Format:      gputypes.TextureFormatBGRA8Unorm,
			AlphaMode:   gputypes.CompositeAlphaModeOpaque,
			PresentMode: gputypes.PresentModeFifo,
		}
	}
	fp := &FeedbackPipeline{
		device:  device,
		queue:   queue,
		surface: surface,
		setup:   setup,
		width:   max(cfg.Width, 1),
		height:  max(cfg.Height, 1),
		scratch: make([]byte, 0, frame.ParametersSize),
	}

	if err := fp.init(cfg.Tuning); err != nil {
		fp.Destroy()
		return nil, err
	}
	slogger().Info("gpu: feedback pipeline ready",
		"width", fp.width, "height", fp.height, "format", fp.setup.Format.String())
	return fp, nil
}

// NewFromProvider builds the pipeline on a device shared by an external
// provider. The provider must expose HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue. If cfg does not name a surface
// format, the provider's preferred format is used.
func NewFromProvider(provider gpucontext.DeviceProvider, surface hal.Surface, cfg PipelineConfig) (*FeedbackPipeline, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	if cfg.Surface.Format == gputypes.TextureFormatUndefined {
		if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			cfg.Surface = SurfaceSetup{
				Format:      f,
				AlphaMode:   gputypes.CompositeAlphaModeOpaque,
				PresentMode: gputypes.PresentModeFifo,
			}
		}
	}
	return NewFeedbackPipeline(device, queue, surface, cfg)
}

func (fp *FeedbackPipeline) init(tuning frame.Tuning) error {
	if err := configureSurface(fp.device, fp.surface, fp.setup, fp.width, fp.height); err != nil {
		return err
	}

	buf, err := fp.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "sentinel_uniforms",
		Size:  frame.ParametersSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	fp.uniformBuffer = buf

	if tuning == (frame.Tuning{}) {
		tuning = frame.DefaultTuning()
	}
	seed := frame.Build(frame.Input{Width: fp.width, Height: fp.height, Tuning: tuning})
	if err := fp.queue.WriteBuffer(fp.uniformBuffer, 0, seed.AppendBytes(fp.scratch[:0])); err != nil {
		return fmt.Errorf("seed uniform buffer: %w", err)
	}

	if err := fp.createPipelines(); err != nil {
		return err
	}

	if _, err := fp.state.ensure(fp.device, StateWidth, StateHeight, simFormat, "sentinel_state"); err != nil {
		return err
	}
	if _, err := fp.render.ensure(fp.device, fp.width, fp.height, simFormat, "sentinel_render"); err != nil {
		return err
	}

	fp.uniformGroup, err = fp.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "sentinel_uniform_bind",
		Layout: fp.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: fp.uniformBuffer.NativeHandle(),
				Size:   frame.ParametersSize,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform bind group: %w", err)
	}
	if err := fp.createSimGroups(); err != nil {
		return err
	}
	return fp.createSizedGroups()
}

func (fp *FeedbackPipeline) createPipelines() error {
	var err error
	if fp.simShader, err = fp.createShader("sentinel_simulation", simulationShaderSource); err != nil {
		return err
	}
	if fp.renderShader, err = fp.createShader("sentinel_render", renderShaderSource); err != nil {
		return err
	}
	if fp.presentShader, err = fp.createShader("sentinel_present", presentShaderSource); err != nil {
		return err
	}

	fp.uniformLayout, err = fp.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "sentinel_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform bind group layout: %w", err)
	}
	if fp.simTexLayout, err = fp.createTextureLayout("sentinel_sim_tex_layout", 1); err != nil {
		return err
	}
	if fp.renderLayout, err = fp.createTextureLayout("sentinel_render_tex_layout", 2); err != nil {
		return err
	}
	if fp.presentLayout, err = fp.createTextureLayout("sentinel_present_tex_layout", 1); err != nil {
		return err
	}

	if fp.simPipeLayout, err = fp.createPipelineLayout("sentinel_sim_pipe_layout", fp.uniformLayout, fp.simTexLayout); err != nil {
		return err
	}
	if fp.renderPipeLayout, err = fp.createPipelineLayout("sentinel_render_pipe_layout", fp.uniformLayout, fp.renderLayout); err != nil {
		return err
	}
	if fp.presentPipeLayout, err = fp.createPipelineLayout("sentinel_present_pipe_layout", fp.presentLayout); err != nil {
		return err
	}

	// Float targets are not blendable; the present stage blends onto the
	// surface so the overlay stays transparent where nothing is drawn.
	if fp.simPipeline, err = fp.createPipeline("sentinel_simulation", fp.simPipeLayout, fp.simShader, simFormat, nil); err != nil {
		return err
	}
	if fp.renderPipeline, err = fp.createPipeline("sentinel_render", fp.renderPipeLayout, fp.renderShader, simFormat, nil); err != nil {
		return err
	}
	blend := gputypes.BlendStateAlpha()
	if fp.presentPipeline, err = fp.createPipeline("sentinel_present", fp.presentPipeLayout, fp.presentShader, fp.setup.Format, &blend); err != nil {
		return err
	}
	return nil
}

func (fp *FeedbackPipeline) createShader(label, source string) (hal.ShaderModule, error) {
	m, err := fp.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}
	return m, nil
}

func (fp *FeedbackPipeline) createTextureLayout(label string, n uint32) (hal.BindGroupLayout, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, n)
	for i := range entries {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		}
	}
	l, err := fp.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: label, Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return l, nil
}

func (fp *FeedbackPipeline) createPipelineLayout(label string, groups ...hal.BindGroupLayout) (hal.PipelineLayout, error) {
	l, err := fp.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return l, nil
}

func (fp *FeedbackPipeline) createPipeline(label string, layout hal.PipelineLayout, module hal.ShaderModule, format gputypes.TextureFormat, blend *gputypes.BlendState) (hal.RenderPipeline, error) {
	p, err := fp.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return p, nil
}

func (fp *FeedbackPipeline) createTextureGroup(label string, layout hal.BindGroupLayout, views ...hal.TextureView) (hal.BindGroup, error) {
	entries := make([]gputypes.BindGroupEntry, len(views))
	for i, v := range views {
		entries[i] = gputypes.BindGroupEntry{
			Binding:  uint32(i),
			Resource: gputypes.TextureViewBinding{TextureView: v.NativeHandle()},
		}
	}
	g, err := fp.device.CreateBindGroup(&hal.BindGroupDescriptor{Label: label, Layout: layout, Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return g, nil
}

// createSimGroups builds the simulation bind groups. Group i is used on
// frames that write state[i] and reads the other state texture.
func (fp *FeedbackPipeline) createSimGroups() error {
	for i := range fp.simGroups {
		g, err := fp.createTextureGroup(fmt.Sprintf("sentinel_sim_bind_%d", i), fp.simTexLayout, fp.state.view[1-i])
		if err != nil {
			return err
		}
		fp.simGroups[i] = g
	}
	return nil
}

// createSizedGroups builds the bind groups that reference the render pair.
// They are rebuilt whenever the render pair is.
func (fp *FeedbackPipeline) createSizedGroups() error {
	for i := range fp.renderGroups {
		g, err := fp.createTextureGroup(fmt.Sprintf("sentinel_render_bind_%d", i), fp.renderLayout,
			fp.state.view[i], fp.render.view[1-i])
		if err != nil {
			return err
		}
		fp.renderGroups[i] = g

		g, err = fp.createTextureGroup(fmt.Sprintf("sentinel_present_bind_%d", i), fp.presentLayout, fp.render.view[i])
		if err != nil {
			return err
		}
		fp.presentGrps[i] = g
	}
	return nil
}

func (fp *FeedbackPipeline) destroySizedGroups() {
	for i := len(fp.renderGroups) - 1; i >= 0; i-- {
		if fp.presentGrps[i] != nil {
			fp.device.DestroyBindGroup(fp.presentGrps[i])
			fp.presentGrps[i] = nil
		}
		if fp.renderGroups[i] != nil {
			fp.device.DestroyBindGroup(fp.renderGroups[i])
			fp.renderGroups[i] = nil
		}
	}
}

// Render draws one frame with the given parameters. The pipeline stamps
// its frame counter into p before upload.
//
// A nil error with FrameSkipped means the surface was not available this
// tick. Errors wrap ErrFatal; the caller should stop rendering.
func (fp *FeedbackPipeline) Render(p *frame.Parameters) (FrameStatus, error) {
	if fp.destroyed {
		return FrameSkipped, fmt.Errorf("%w: pipeline destroyed", ErrFatal)
	}
	if fp.presentGrps[0] == nil {
		return FrameSkipped, fmt.Errorf("%w: no render targets", ErrFatal)
	}
	p.FrameCount = fp.frame
	fp.scratch = p.AppendBytes(fp.scratch[:0])
	if err := fp.queue.WriteBuffer(fp.uniformBuffer, 0, fp.scratch); err != nil {
		return FrameSkipped, fmt.Errorf("%w: write uniforms: %w", ErrFatal, err)
	}

	acquired, err := fp.surface.AcquireTexture(nil)
	if err != nil {
		return fp.handleSurfaceError("acquire", err)
	}

	view, err := fp.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:           "sentinel_surface_view",
		Format:          fp.setup.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		fp.surface.DiscardTexture(acquired.Texture)
		return FrameSkipped, fmt.Errorf("%w: create surface view: %w", ErrFatal, err)
	}
	defer fp.device.DestroyTextureView(view)

	cmdBuf, err := fp.encode(view)
	if err != nil {
		fp.surface.DiscardTexture(acquired.Texture)
		return FrameSkipped, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	defer fp.device.FreeCommandBuffer(cmdBuf)

	if _, err := fp.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		fp.surface.DiscardTexture(acquired.Texture)
		return FrameSkipped, fmt.Errorf("%w: submit: %w", ErrFatal, err)
	}
	// The ping-pong textures were written; the roles swap even if
	// presentation fails below.
	fp.frame++

	if err := fp.queue.Present(fp.surface, acquired.Texture, nil); err != nil {
		return fp.handleSurfaceError("present", err)
	}
	if acquired.Suboptimal {
		slogger().Debug("gpu: suboptimal surface, reconfiguring")
		if err := configureSurface(fp.device, fp.surface, fp.setup, fp.width, fp.height); err != nil {
			return FramePresented, fmt.Errorf("%w: %w", ErrFatal, err)
		}
	}
	return FramePresented, nil
}

// handleSurfaceError classifies a surface failure.
func (fp *FeedbackPipeline) handleSurfaceError(op string, err error) (FrameStatus, error) {
	switch {
	case errors.Is(err, hal.ErrSurfaceOutdated), errors.Is(err, hal.ErrSurfaceLost):
		slogger().Info("gpu: surface "+op+" failed, reconfiguring", "err", err)
		if cerr := configureSurface(fp.device, fp.surface, fp.setup, fp.width, fp.height); cerr != nil {
			return FrameSkipped, fmt.Errorf("%w: %w", ErrFatal, cerr)
		}
		return FrameSkipped, nil
	case errors.Is(err, hal.ErrTimeout), errors.Is(err, hal.ErrNotReady):
		slogger().Debug("gpu: surface "+op+" not ready, skipping frame", "err", err)
		return FrameSkipped, nil
	default:
		return FrameSkipped, fmt.Errorf("%w: surface %s: %w", ErrFatal, op, err)
	}
}

func (fp *FeedbackPipeline) encode(surfaceView hal.TextureView) (hal.CommandBuffer, error) {
	encoder, err := fp.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sentinel_frame"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("sentinel_frame"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	w := writeIndex(fp.frame)

	fp.pass(encoder, "sentinel_simulation_pass", fp.state.view[w], fp.simPipeline, fp.uniformGroup, fp.simGroups[w])
	fp.pass(encoder, "sentinel_render_pass", fp.render.view[w], fp.renderPipeline, fp.uniformGroup, fp.renderGroups[w])
	fp.pass(encoder, "sentinel_present_pass", surfaceView, fp.presentPipeline, fp.presentGrps[w])

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return cmdBuf, nil
}

// pass records one fullscreen-triangle pass that clears target to black.
func (fp *FeedbackPipeline) pass(encoder hal.CommandEncoder, label string, target hal.TextureView, pipeline hal.RenderPipeline, groups ...hal.BindGroup) {
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       target,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	})
	rp.SetPipeline(pipeline)
	for i, g := range groups {
		rp.SetBindGroup(uint32(i), g, nil)
	}
	rp.Draw(3, 1, 0, 0)
	rp.End()
}

// Resize reconfigures the surface and recreates the render pair and the
// bind groups that reference it. A zero dimension or an unchanged size is
// a no-op and reports false.
func (fp *FeedbackPipeline) Resize(w, h uint32) (bool, error) {
	if fp.destroyed {
		return false, fmt.Errorf("%w: pipeline destroyed", ErrFatal)
	}
	if w == 0 || h == 0 || (w == fp.width && h == fp.height) {
		return false, nil
	}
	if err := configureSurface(fp.device, fp.surface, fp.setup, w, h); err != nil {
		return false, err
	}

	// On failure the render targets are gone and the size is cleared, so
	// Render fails until a later Resize rebuilds them.
	fp.destroySizedGroups()
	if _, err := fp.render.ensure(fp.device, w, h, simFormat, "sentinel_render"); err != nil {
		fp.width, fp.height = 0, 0
		return false, err
	}
	if err := fp.createSizedGroups(); err != nil {
		fp.destroySizedGroups()
		fp.width, fp.height = 0, 0
		return false, err
	}
	fp.width, fp.height = w, h
	slogger().Debug("gpu: resized", "width", w, "height", h)
	return true, nil
}

// FrameCount returns the number of frames submitted so far, modulo 2^32.
func (fp *FeedbackPipeline) FrameCount() uint32 { return fp.frame }

// Size returns the current surface size.
func (fp *FeedbackPipeline) Size() (w, h uint32) { return fp.width, fp.height }

// Format returns the surface texture format.
func (fp *FeedbackPipeline) Format() gputypes.TextureFormat { return fp.setup.Format }

// Destroy releases every resource in reverse creation order and
// unconfigures the surface. The device, queue and surface themselves are
// owned by the caller. Destroy is idempotent.
func (fp *FeedbackPipeline) Destroy() {
	if fp.destroyed {
		return
	}
	fp.destroyed = true
	d := fp.device

	fp.destroySizedGroups()
	for i := len(fp.simGroups) - 1; i >= 0; i-- {
		if fp.simGroups[i] != nil {
			d.DestroyBindGroup(fp.simGroups[i])
			fp.simGroups[i] = nil
		}
	}
	if fp.uniformGroup != nil {
		d.DestroyBindGroup(fp.uniformGroup)
		fp.uniformGroup = nil
	}
	fp.render.destroy(d)
	fp.state.destroy(d)

	for _, p := range []*hal.RenderPipeline{&fp.presentPipeline, &fp.renderPipeline, &fp.simPipeline} {
		if *p != nil {
			d.DestroyRenderPipeline(*p)
			*p = nil
		}
	}
	for _, l := range []*hal.PipelineLayout{&fp.presentPipeLayout, &fp.renderPipeLayout, &fp.simPipeLayout} {
		if *l != nil {
			d.DestroyPipelineLayout(*l)
			*l = nil
		}
	}
	for _, l := range []*hal.BindGroupLayout{&fp.presentLayout, &fp.renderLayout, &fp.simTexLayout, &fp.uniformLayout} {
		if *l != nil {
			d.DestroyBindGroupLayout(*l)
			*l = nil
		}
	}
	for _, m := range []*hal.ShaderModule{&fp.presentShader, &fp.renderShader, &fp.simShader} {
		if *m != nil {
			d.DestroyShaderModule(*m)
			*m = nil
		}
	}
	if fp.uniformBuffer != nil {
		d.DestroyBuffer(fp.uniformBuffer)
		fp.uniformBuffer = nil
	}
	fp.surface.Unconfigure(d)
	slogger().Debug("gpu: feedback pipeline destroyed")
}
