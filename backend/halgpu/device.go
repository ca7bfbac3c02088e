package halgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Device is the subset of hal.Device the executor uses.
type Device interface {
	CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error)
	DestroyBuffer(buffer hal.Buffer)

	CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error)
	DestroyTexture(texture hal.Texture)
	CreateTextureView(texture hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error)
	DestroyTextureView(view hal.TextureView)

	CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error)
	DestroySampler(sampler hal.Sampler)

	CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error)
	DestroyBindGroupLayout(layout hal.BindGroupLayout)
	CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error)
	DestroyBindGroup(group hal.BindGroup)

	CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error)
	DestroyPipelineLayout(layout hal.PipelineLayout)
	CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error)
	DestroyShaderModule(module hal.ShaderModule)
	CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error)
	DestroyRenderPipeline(pipeline hal.RenderPipeline)

	WaitIdle() error
}

// Queue is the subset of hal.Queue the executor uses.
type Queue interface {
	WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error
	WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error
}

var (
	_ Device = hal.Device(nil)
	_ Queue  = hal.Queue(nil)
)

// ErrNoHAL is returned by FromProvider when the provider does not expose
// HAL objects.
var ErrNoHAL = errors.New("halgpu: provider does not expose HAL device and queue")

// FromProvider creates an executor on the device of a gpucontext provider.
// The provider's device must expose HalDevice and HalQueue, either typed or
// as any. When opts.SurfaceFormat is unset the provider's surface format is
// used for the final pass.
func FromProvider(p gpucontext.DeviceProvider, opts Options) (*Executor, error) {
	if p == nil {
		return nil, ErrNoHAL
	}
	device, queue, err := halObjects(p.Device())
	if err != nil {
		return nil, err
	}
	if opts.SurfaceFormat == 0 {
		opts.SurfaceFormat = p.SurfaceFormat()
	}
	return New(device, queue, opts)
}

func halObjects(dev gpucontext.Device) (hal.Device, hal.Queue, error) {
	type typed interface {
		HalDevice() hal.Device
		HalQueue() hal.Queue
	}
	type untyped interface {
		HalDevice() any
		HalQueue() any
	}
	switch hp := dev.(type) {
	case typed:
		if hp.HalDevice() == nil || hp.HalQueue() == nil {
			return nil, nil, ErrNoHAL
		}
		return hp.HalDevice(), hp.HalQueue(), nil
	case untyped:
		device, ok := hp.HalDevice().(hal.Device)
		if !ok || device == nil {
			return nil, nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHAL, hp.HalDevice())
		}
		queue, ok := hp.HalQueue().(hal.Queue)
		if !ok || queue == nil {
			return nil, nil, fmt.Errorf("%w: HalQueue is %T", ErrNoHAL, hp.HalQueue())
		}
		return device, queue, nil
	}
	return nil, nil, fmt.Errorf("%w: device is %T", ErrNoHAL, dev)
}

// CapabilityChecker returns a FormatChecker that accepts the formats the
// adapter can both sample and render to.
func CapabilityChecker(a hal.Adapter) func(gputypes.TextureFormat) bool {
	const need = hal.TextureFormatCapabilitySampled | hal.TextureFormatCapabilityRenderAttachment
	return func(f gputypes.TextureFormat) bool {
		return a.TextureFormatCapabilities(f).Flags&need == need
	}
}
