package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const blitShader = `
struct VSOut {
	@builtin(position) pos: vec4<f32>,
	@location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec4<f32>, @location(1) uv: vec2<f32>) -> VSOut {
	return VSOut(pos, uv);
}

@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var src_sampler: sampler;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
	return textureSampleLevel(src, src_sampler, uv, 0.0);
}
`

// blitter draws one texture view into another with linear filtering. It
// generates mip levels and copies between images of different size or
// format.
type blitter struct {
	exec       *Executor
	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	pipelines  map[gputypes.TextureFormat]hal.RenderPipeline
}

func (e *Executor) blitter() (*blitter, error) {
	if e.blit != nil {
		return e.blit, nil
	}
	b := &blitter{exec: e, pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline)}
	if err := b.create(); err != nil {
		b.destroy()
		return nil, err
	}
	e.blit = b
	return b, nil
}

func (b *blitter) create() error {
	dev := b.exec.device
	shader, err := dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "blit_shader",
		Source: hal.ShaderSource{WGSL: blitShader},
	})
	if err != nil {
		return fmt.Errorf("halgpu: compile blit shader: %w", err)
	}
	b.shader = shader

	layout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blit_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("halgpu: create blit layout: %w", err)
	}
	b.layout = layout

	pipeLayout, err := dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{b.layout},
	})
	if err != nil {
		return fmt.Errorf("halgpu: create blit pipeline layout: %w", err)
	}
	b.pipeLayout = pipeLayout

	sampler, err := dev.CreateSampler(&hal.SamplerDescriptor{
		Label:        "blit_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("halgpu: create blit sampler: %w", err)
	}
	b.sampler = sampler
	return nil
}

func (b *blitter) pipeline(tf gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if p, ok := b.pipelines[tf]; ok {
		return p, nil
	}
	p, err := b.exec.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("blit_pipeline_%v", tf),
		Layout: b.pipeLayout,
		Vertex: hal.VertexState{
			Module:     b.shader,
			EntryPoint: "vs_main",
			Buffers:    quadLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     b.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: tf, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create blit pipeline: %w", err)
	}
	b.pipelines[tf] = p
	return p, nil
}

// draw records a render pass that fills dst with src.
func (b *blitter) draw(enc hal.CommandEncoder, dst hal.TextureView, tf gputypes.TextureFormat, src hal.TextureView, label string) error {
	pipeline, err := b.pipeline(tf)
	if err != nil {
		return err
	}
	dev := b.exec.device
	group, err := dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label,
		Layout: b.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: src.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: b.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("halgpu: create blit bind group: %w", err)
	}
	b.exec.release(func() { dev.DestroyBindGroup(group) })

	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    dst,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, group, nil)
	rp.SetVertexBuffer(0, b.exec.quad, 0)
	rp.Draw(4, 1, 0, 0)
	rp.End()
	return nil
}

func (b *blitter) destroy() {
	dev := b.exec.device
	for tf, p := range b.pipelines {
		dev.DestroyRenderPipeline(p)
		delete(b.pipelines, tf)
	}
	if b.sampler != nil {
		dev.DestroySampler(b.sampler)
		b.sampler = nil
	}
	if b.pipeLayout != nil {
		dev.DestroyPipelineLayout(b.pipeLayout)
		b.pipeLayout = nil
	}
	if b.layout != nil {
		dev.DestroyBindGroupLayout(b.layout)
		b.layout = nil
	}
	if b.shader != nil {
		dev.DestroyShaderModule(b.shader)
		b.shader = nil
	}
}
