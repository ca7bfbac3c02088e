// Package halgpu runs a shaderchain filter chain on the gogpu/wgpu hardware
// abstraction layer.
//
// It is the explicit back-end: the caller owns the command encoder and the
// final render pass, and keeps several frames in flight. Every per-frame
// resource the executor writes (uniform buffers, bind groups) is replicated
// once per sync index, and nothing the GPU may still read is destroyed until
// its sync index comes around again.
//
// Typical frame:
//
//	chain.SetSyncIndex(frame % exec.SyncIndices())
//	chain.SetInput(exec.WrapTexture(tex, view, size, format.R8G8B8A8Unorm))
//	chain.RunOffscreen(encoder)
//	rp := encoder.BeginRenderPass(...)
//	chain.RunFinal(encoder, halgpu.FinalTarget{Pass: rp, Format: surfaceFormat})
//	rp.End()
//	chain.EndFrame(encoder)
//
// Shaders are consumed as SPIR-V. Push constant blocks are moved into a
// uniform buffer at crosscompile.PushBinding, since hal render passes have
// no push constant entry point.
package halgpu
