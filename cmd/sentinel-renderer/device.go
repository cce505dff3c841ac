package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// gpuDevice owns the HAL objects the pipeline is built on. It implements
// gpucontext.DeviceProvider so the pipeline can be constructed the same way
// a host framework would share its device.
type gpuDevice struct {
	instance hal.Instance
	surface  hal.Surface
	adapter  hal.ExposedAdapter
	device   hal.Device
	queue    hal.Queue
	format   gputypes.TextureFormat
}

var _ gpucontext.DeviceProvider = (*gpuDevice)(nil)

func (d *gpuDevice) Device() gpucontext.Device             { return d.device }
func (d *gpuDevice) Queue() gpucontext.Queue               { return d.queue }
func (d *gpuDevice) SurfaceFormat() gputypes.TextureFormat { return d.format }
func (d *gpuDevice) Adapter() gpucontext.Adapter           { return d.adapter.Adapter }
func (d *gpuDevice) HalDevice() any                        { return d.device }
func (d *gpuDevice) HalQueue() any                         { return d.queue }

func (d *gpuDevice) AdapterInfo() gpucontext.AdapterInfo {
	info := gpucontext.AdapterInfo{Name: d.adapter.Info.Name, Type: gpucontext.AdapterTypeUnknown}
	switch d.adapter.Info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		info.Type = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		info.Type = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		info.Type = gpucontext.AdapterTypeSoftware
	}
	return info
}

// selectBackend maps a -backend name to a HAL backend. The software and
// noop backends share a registry slot, so they are named directly.
func selectBackend(name string) (hal.Backend, error) {
	switch strings.ToLower(name) {
	case "vulkan", "":
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("vulkan backend not available")
		}
		return b, nil
	case "software":
		return software.API{}, nil
	case "noop":
		return noop.API{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want vulkan, software or noop)", name)
	}
}

// openDevice creates the instance and surface, picks an adapter that can
// present to it, and opens a device. Discrete and integrated GPUs are
// preferred.
func openDevice(backend hal.Backend, display, window uintptr) (*gpuDevice, error) {
	d := &gpuDevice{}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	d.instance = instance

	surface, err := instance.CreateSurface(display, window)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create surface: %w", err)
	}
	d.surface = surface

	adapters := instance.EnumerateAdapters(surface)
	if len(adapters) == 0 {
		d.Close()
		return nil, fmt.Errorf("no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	d.adapter = *selected

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open device: %w", err)
	}
	d.device = openDev.Device
	d.queue = openDev.Queue

	slog.Info("sentinel-renderer: adapter selected",
		"name", selected.Info.Name, "type", selected.Info.DeviceType.String())
	return d, nil
}

// Close releases the device, surface and instance in reverse order.
func (d *gpuDevice) Close() {
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
		d.queue = nil
	}
	if d.surface != nil {
		d.surface.Destroy()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
