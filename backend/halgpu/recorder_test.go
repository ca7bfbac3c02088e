package halgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/require"
)

// openNoop opens a device on the wgpu noop backend.
func openNoop(t *testing.T) (hal.Adapter, hal.Device, hal.Queue) {
	t.Helper()
	inst, err := noop.API{}.CreateInstance(nil)
	require.NoError(t, err)
	adapters := inst.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	od, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	require.NoError(t, err)
	t.Cleanup(func() {
		od.Device.Destroy()
		inst.Destroy()
	})
	return adapters[0].Adapter, od.Device, od.Queue
}

// recorder counts object creation and destruction on a real HAL device and
// can reject texture formats.
type recorder struct {
	hal.Device

	created   map[string]int
	destroyed map[string]int
	formats   []gputypes.TextureFormat
	reject    map[gputypes.TextureFormat]bool
	waitIdle  int
}

func newRecorder(dev hal.Device) *recorder {
	return &recorder{
		Device:    dev,
		created:   make(map[string]int),
		destroyed: make(map[string]int),
		reject:    make(map[gputypes.TextureFormat]bool),
	}
}

// live returns created minus destroyed objects of kind.
func (r *recorder) live(kind string) int { return r.created[kind] - r.destroyed[kind] }

var errRejected = errors.New("recorder: format rejected")

func (r *recorder) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	r.created["buffer"]++
	return r.Device.CreateBuffer(desc)
}

func (r *recorder) DestroyBuffer(b hal.Buffer) {
	r.destroyed["buffer"]++
	r.Device.DestroyBuffer(b)
}

func (r *recorder) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	r.formats = append(r.formats, desc.Format)
	if r.reject[desc.Format] {
		return nil, errRejected
	}
	r.created["texture"]++
	return r.Device.CreateTexture(desc)
}

func (r *recorder) DestroyTexture(t hal.Texture) {
	r.destroyed["texture"]++
	r.Device.DestroyTexture(t)
}

func (r *recorder) CreateTextureView(t hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	r.created["view"]++
	return r.Device.CreateTextureView(t, desc)
}

func (r *recorder) DestroyTextureView(v hal.TextureView) {
	r.destroyed["view"]++
	r.Device.DestroyTextureView(v)
}

func (r *recorder) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	r.created["sampler"]++
	return r.Device.CreateSampler(desc)
}

func (r *recorder) DestroySampler(s hal.Sampler) {
	r.destroyed["sampler"]++
	r.Device.DestroySampler(s)
}

func (r *recorder) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	r.created["bind group layout"]++
	return r.Device.CreateBindGroupLayout(desc)
}

func (r *recorder) DestroyBindGroupLayout(l hal.BindGroupLayout) {
	r.destroyed["bind group layout"]++
	r.Device.DestroyBindGroupLayout(l)
}

func (r *recorder) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	r.created["bind group"]++
	return r.Device.CreateBindGroup(desc)
}

func (r *recorder) DestroyBindGroup(g hal.BindGroup) {
	r.destroyed["bind group"]++
	r.Device.DestroyBindGroup(g)
}

func (r *recorder) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	r.created["pipeline layout"]++
	return r.Device.CreatePipelineLayout(desc)
}

func (r *recorder) DestroyPipelineLayout(l hal.PipelineLayout) {
	r.destroyed["pipeline layout"]++
	r.Device.DestroyPipelineLayout(l)
}

func (r *recorder) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	r.created["shader"]++
	return r.Device.CreateShaderModule(desc)
}

func (r *recorder) DestroyShaderModule(m hal.ShaderModule) {
	r.destroyed["shader"]++
	r.Device.DestroyShaderModule(m)
}

func (r *recorder) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	r.created["pipeline"]++
	return r.Device.CreateRenderPipeline(desc)
}

func (r *recorder) DestroyRenderPipeline(p hal.RenderPipeline) {
	r.destroyed["pipeline"]++
	r.Device.DestroyRenderPipeline(p)
}

func (r *recorder) WaitIdle() error {
	r.waitIdle++
	return r.Device.WaitIdle()
}

type bufferWrite struct {
	buf  hal.Buffer
	data []byte
}

type recQueue struct {
	hal.Queue
	writes        []bufferWrite
	textureWrites []uint32 // mip level of each write
}

func (q *recQueue) WriteBuffer(b hal.Buffer, offset uint64, data []byte) error {
	q.writes = append(q.writes, bufferWrite{buf: b, data: append([]byte(nil), data...)})
	return q.Queue.WriteBuffer(b, offset, data)
}

func (q *recQueue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.textureWrites = append(q.textureWrites, dst.MipLevel)
	return q.Queue.WriteTexture(dst, data, layout, size)
}

type recEncoder struct {
	hal.CommandEncoder
	passes []*recPass
	copies int
}

func newEncoder(t *testing.T, dev hal.Device) *recEncoder {
	t.Helper()
	enc, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "test"})
	require.NoError(t, err)
	require.NoError(t, enc.BeginEncoding("test"))
	return &recEncoder{CommandEncoder: enc}
}

func (e *recEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	p := &recPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), label: desc.Label}
	if len(desc.ColorAttachments) > 0 {
		p.load = desc.ColorAttachments[0].LoadOp
	}
	e.passes = append(e.passes, p)
	return p
}

func (e *recEncoder) CopyTextureToTexture(src, dst hal.Texture, regions []hal.TextureCopy) {
	e.copies++
	e.CommandEncoder.CopyTextureToTexture(src, dst, regions)
}

type recPass struct {
	hal.RenderPassEncoder
	label    string
	load     gputypes.LoadOp
	viewport [4]float32
	groups   []uint32
	draws    int
	ended    bool
}

func (p *recPass) SetViewport(x, y, w, h, minDepth, maxDepth float32) {
	p.viewport = [4]float32{x, y, w, h}
	p.RenderPassEncoder.SetViewport(x, y, w, h, minDepth, maxDepth)
}

func (p *recPass) SetBindGroup(index uint32, g hal.BindGroup, offsets []uint32) {
	p.groups = append(p.groups, index)
	p.RenderPassEncoder.SetBindGroup(index, g, offsets)
}

func (p *recPass) Draw(vertices, instances, firstVertex, firstInstance uint32) {
	p.draws++
	p.RenderPassEncoder.Draw(vertices, instances, firstVertex, firstInstance)
}

func (p *recPass) End() {
	p.ended = true
	p.RenderPassEncoder.End()
}
