package halgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/shaderchain"
	"github.com/gogpu/shaderchain/crosscompile"
	"github.com/gogpu/shaderchain/reflection"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoSPIRV is returned when a program description carries no SPIR-V.
var ErrNoSPIRV = errors.New("halgpu: program has no SPIR-V")

// textureSlot is one sampled texture of a pass.
type textureSlot struct {
	binding uint32
	stages  gputypes.ShaderStages
	sampler bool
}

// program is one pass: shader modules, a layout of two bind groups
// (resources in group 0, samplers in group 1), uniform buffers per sync
// index and one pipeline per target format.
type program struct {
	exec  *Executor
	label string
	refl  *reflection.Reflection

	vs, fs     hal.ShaderModule
	layouts    [2]hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  map[gputypes.TextureFormat]hal.RenderPipeline

	uboSize  uint64
	pushSize uint64
	ubo      []hal.Buffer // indexed by sync index
	push     []hal.Buffer
	textures []textureSlot
}

func stages(m reflection.StageMask) gputypes.ShaderStages {
	var s gputypes.ShaderStages
	if m.Has(reflection.StageVertex) {
		s |= gputypes.ShaderStageVertex
	}
	if m.Has(reflection.StageFragment) {
		s |= gputypes.ShaderStageFragment
	}
	if s == 0 {
		s = gputypes.ShaderStageFragment
	}
	return s
}

func align16(n uint32) uint64 { return uint64(n+15) &^ 15 }

// NewProgram creates the GPU objects of one pass.
func (e *Executor) NewProgram(desc *shaderchain.ProgramDesc) (shaderchain.Program, error) {
	if desc.Vertex == nil || desc.Fragment == nil || len(desc.Vertex.SPIRV) == 0 || len(desc.Fragment.SPIRV) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSPIRV, desc.Label)
	}
	p := &program{
		exec:      e,
		label:     desc.Label,
		refl:      desc.Reflection,
		pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline),
		uboSize:   align16(desc.Reflection.UBOSize),
		pushSize:  align16(desc.Reflection.PushSize),
	}
	for _, st := range desc.Reflection.SampledTextures() {
		p.textures = append(p.textures, textureSlot{
			binding: st.Binding.Binding,
			stages:  stages(st.Binding.Stages),
			sampler: st.Binding.Sampler,
		})
	}
	if err := p.create(desc); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

func (p *program) create(desc *shaderchain.ProgramDesc) error {
	dev := p.exec.device
	var err error
	p.vs, err = dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.label + " vertex",
		Source: hal.ShaderSource{SPIRV: desc.Vertex.SPIRV},
	})
	if err != nil {
		return fmt.Errorf("halgpu: %s: vertex module: %w", p.label, err)
	}
	p.fs, err = dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.label + " fragment",
		Source: hal.ShaderSource{SPIRV: desc.Fragment.SPIRV},
	})
	if err != nil {
		return fmt.Errorf("halgpu: %s: fragment module: %w", p.label, err)
	}

	var resources, samplers []gputypes.BindGroupLayoutEntry
	uniform := &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	if p.uboSize > 0 {
		resources = append(resources, gputypes.BindGroupLayoutEntry{
			Binding:    p.refl.UBOBinding,
			Visibility: stages(p.refl.UBOStages),
			Buffer:     uniform,
		})
	}
	if p.pushSize > 0 {
		resources = append(resources, gputypes.BindGroupLayoutEntry{
			Binding:    crosscompile.PushBinding,
			Visibility: stages(p.refl.PushStages),
			Buffer:     uniform,
		})
	}
	for _, t := range p.textures {
		resources = append(resources, gputypes.BindGroupLayoutEntry{
			Binding:    t.binding,
			Visibility: t.stages,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
		if t.sampler {
			samplers = append(samplers, gputypes.BindGroupLayoutEntry{
				Binding:    t.binding,
				Visibility: t.stages,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			})
		}
	}
	for i, entries := range [2][]gputypes.BindGroupLayoutEntry{resources, samplers} {
		p.layouts[i], err = dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", p.label, i),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("halgpu: %s: bind group layout %d: %w", p.label, i, err)
		}
	}
	p.pipeLayout, err = dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.label,
		BindGroupLayouts: p.layouts[:],
	})
	if err != nil {
		return fmt.Errorf("halgpu: %s: pipeline layout: %w", p.label, err)
	}

	frames := p.exec.opts.Frames
	newBuffers := func(kind string, size uint64) ([]hal.Buffer, error) {
		if size == 0 {
			return nil, nil
		}
		bufs := make([]hal.Buffer, 0, frames)
		for i := range frames {
			b, err := dev.CreateBuffer(&hal.BufferDescriptor{
				Label: fmt.Sprintf("%s %s %d", p.label, kind, i),
				Size:  size,
				Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
			})
			if err != nil {
				for _, b := range bufs {
					dev.DestroyBuffer(b)
				}
				return nil, fmt.Errorf("halgpu: %s: %s buffer: %w", p.label, kind, err)
			}
			bufs = append(bufs, b)
		}
		return bufs, nil
	}
	if p.ubo, err = newBuffers("ubo", p.uboSize); err != nil {
		return err
	}
	if p.push, err = newBuffers("push", p.pushSize); err != nil {
		return err
	}
	return nil
}

func (p *program) pipeline(tf gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if pl, ok := p.pipelines[tf]; ok {
		return pl, nil
	}
	pl, err := p.exec.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("%s %v", p.label, tf),
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.vs,
			EntryPoint: crosscompile.EntryPoint,
			Buffers:    quadLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.fs,
			EntryPoint: crosscompile.EntryPoint,
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
		return nil, fmt.Errorf("halgpu: %s: pipeline for %v: %w", p.label, tf, err)
	}
	p.pipelines[tf] = pl
	return pl, nil
}

// Draw uploads the pass uniforms into the current sync index's buffers,
// binds the pass textures and draws the quad. Offscreen passes get their
// own render pass; the final pass records into the caller's.
func (p *program) Draw(dc *shaderchain.DrawCall) error {
	slot := p.exec.trash.index
	if err := p.write(p.ubo, slot, dc.UBO); err != nil {
		return err
	}
	if err := p.write(p.push, slot, dc.Push); err != nil {
		return err
	}
	groups, err := p.bindGroups(dc, slot)
	if err != nil {
		return err
	}

	if dc.Target == nil {
		t, err := finalTarget(dc.Final)
		if err != nil {
			return err
		}
		tf := t.Format
		if tf == gputypes.TextureFormatUndefined {
			tf = p.exec.opts.SurfaceFormat
		}
		if tf == gputypes.TextureFormatUndefined {
			return ErrNoSurfaceFormat
		}
		pl, err := p.pipeline(tf)
		if err != nil {
			return err
		}
		p.record(t.Pass, pl, groups, dc.Viewport)
		return nil
	}

	enc, err := encoder(dc.Commands)
	if err != nil {
		return err
	}
	fb, ok := dc.Target.(*Framebuffer)
	if !ok || fb.exec != p.exec {
		return ErrForeignImage
	}
	pl, err := p.pipeline(fb.format.TextureFormat())
	if err != nil {
		return err
	}
	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: p.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    fb.levelView(0),
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	p.record(rp, pl, groups, dc.Viewport)
	rp.End()
	return nil
}

func finalTarget(t shaderchain.DrawTarget) (FinalTarget, error) {
	switch v := t.(type) {
	case FinalTarget:
		if v.Pass != nil {
			return v, nil
		}
	case *FinalTarget:
		if v != nil && v.Pass != nil {
			return *v, nil
		}
	}
	return FinalTarget{}, fmt.Errorf("%w, got %T", ErrTarget, t)
}

func (p *program) write(bufs []hal.Buffer, slot int, data []byte) error {
	if len(bufs) == 0 || len(data) == 0 {
		return nil
	}
	if err := p.exec.queue.WriteBuffer(bufs[slot], 0, data); err != nil {
		return fmt.Errorf("halgpu: %s: write uniforms: %w", p.label, err)
	}
	return nil
}

func (p *program) record(rp hal.RenderPassEncoder, pl hal.RenderPipeline, groups [2]hal.BindGroup, vp shaderchain.Viewport) {
	rp.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), 0, 1)
	rp.SetPipeline(pl)
	rp.SetBindGroup(0, groups[0], nil)
	rp.SetBindGroup(1, groups[1], nil)
	rp.SetVertexBuffer(0, p.exec.quad, 0)
	rp.Draw(4, 1, 0, 0)
}

// bindGroups creates this draw's bind groups. They are retired to the
// current sync index right away, so they live exactly as long as the frame
// that records them. Bindings the chain left unresolved read a 1x1
// transparent texture.
func (p *program) bindGroups(dc *shaderchain.DrawCall, slot int) ([2]hal.BindGroup, error) {
	var groups [2]hal.BindGroup
	var resources, samplers []gputypes.BindGroupEntry
	if len(p.ubo) > 0 {
		resources = append(resources, gputypes.BindGroupEntry{
			Binding:  p.refl.UBOBinding,
			Resource: gputypes.BufferBinding{Buffer: p.ubo[slot].NativeHandle(), Size: p.uboSize},
		})
	}
	if len(p.push) > 0 {
		resources = append(resources, gputypes.BindGroupEntry{
			Binding:  crosscompile.PushBinding,
			Resource: gputypes.BufferBinding{Buffer: p.push[slot].NativeHandle(), Size: p.pushSize},
		})
	}

	bound := make(map[uint32]shaderchain.BoundTexture, len(dc.Textures))
	for _, t := range dc.Textures {
		bound[t.Binding] = t
	}
	for _, t := range p.textures {
		var view hal.TextureView = p.exec.empty.view
		key := defaultSampler
		if b, ok := bound[t.binding]; ok {
			src, ok := b.Image.(source)
			if !ok {
				return groups, fmt.Errorf("%w: binding %d of %s", ErrForeignImage, t.binding, p.label)
			}
			view = src.halView()
			key = samplerKey{filter: b.Filter, mip: b.MipFilter, wrap: b.Wrap}
		}
		resources = append(resources, gputypes.BindGroupEntry{
			Binding:  t.binding,
			Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
		})
		if t.sampler {
			s, err := p.exec.sampler(key)
			if err != nil {
				return groups, err
			}
			samplers = append(samplers, gputypes.BindGroupEntry{
				Binding:  t.binding,
				Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()},
			})
		}
	}

	dev := p.exec.device
	for i, entries := range [2][]gputypes.BindGroupEntry{resources, samplers} {
		g, err := dev.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s group %d sync %d", p.label, i, slot),
			Layout:  p.layouts[i],
			Entries: entries,
		})
		if err != nil {
			return groups, fmt.Errorf("halgpu: %s: bind group %d: %w", p.label, i, err)
		}
		groups[i] = g
		p.exec.release(func() { dev.DestroyBindGroup(g) })
	}
	return groups, nil
}

// Release retires every GPU object of the pass.
func (p *program) Release() { p.exec.release(p.destroy) }

func (p *program) destroy() {
	dev := p.exec.device
	for tf, pl := range p.pipelines {
		dev.DestroyRenderPipeline(pl)
		delete(p.pipelines, tf)
	}
	if p.pipeLayout != nil {
		dev.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	for i, l := range p.layouts {
		if l != nil {
			dev.DestroyBindGroupLayout(l)
			p.layouts[i] = nil
		}
	}
	for _, b := range p.ubo {
		dev.DestroyBuffer(b)
	}
	for _, b := range p.push {
		dev.DestroyBuffer(b)
	}
	p.ubo, p.push = nil, nil
	if p.fs != nil {
		dev.DestroyShaderModule(p.fs)
		p.fs = nil
	}
	if p.vs != nil {
		dev.DestroyShaderModule(p.vs)
		p.vs = nil
	}
}
