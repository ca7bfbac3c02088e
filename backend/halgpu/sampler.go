package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/shaderchain"
	"github.com/gogpu/wgpu/hal"
)

type samplerKey struct {
	filter shaderchain.Filter
	mip    shaderchain.Filter
	wrap   shaderchain.Wrap
}

var defaultSampler = samplerKey{filter: shaderchain.FilterNearest, mip: shaderchain.FilterNearest}

func filterMode(f shaderchain.Filter) gputypes.FilterMode {
	if f == shaderchain.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

// addressMode maps a wrap mode. WebGPU has no border color, so clamp to
// border samples like clamp to edge.
func addressMode(w shaderchain.Wrap) gputypes.AddressMode {
	switch w {
	case shaderchain.WrapRepeat:
		return gputypes.AddressModeRepeat
	case shaderchain.WrapMirroredRepeat:
		return gputypes.AddressModeMirrorRepeat
	}
	return gputypes.AddressModeClampToEdge
}

// sampler returns the shared sampler for k. Samplers live until Close.
func (e *Executor) sampler(k samplerKey) (hal.Sampler, error) {
	if s, ok := e.samplers[k]; ok {
		return s, nil
	}
	mode := addressMode(k.wrap)
	s, err := e.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        fmt.Sprintf("sampler %v/%v/%v", k.filter, k.mip, k.wrap),
		AddressModeU: mode,
		AddressModeV: mode,
		AddressModeW: mode,
		MagFilter:    filterMode(k.filter),
		MinFilter:    filterMode(k.filter),
		MipmapFilter: filterMode(k.mip),
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create sampler: %w", err)
	}
	e.samplers[k] = s
	return s, nil
}
