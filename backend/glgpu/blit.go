package glgpu

import (
	"fmt"

	"github.com/gogpu/shaderchain"
)

const blitVertex = `#version 330 core
layout(location = 0) in vec4 position;
layout(location = 1) in vec2 texcoord;
out vec2 uv;

void main() {
	uv = texcoord;
	gl_Position = position;
}
`

const blitFragment = `#version 330 core
uniform sampler2D src;
in vec2 uv;
out vec4 color;

void main() {
	color = texture(src, uv);
}
`

// blitter draws one texture into a framebuffer with linear filtering.
type blitter struct {
	program uint32
	sampler uint32
}

func (e *Executor) blitter() (*blitter, error) {
	if e.blit != nil {
		return e.blit, nil
	}
	prog, err := e.gl.CreateProgram(blitVertex, blitFragment)
	if err != nil {
		return nil, fmt.Errorf("glgpu: compile blit program: %w", err)
	}
	e.gl.UseProgram(prog)
	e.gl.Uniform1i(e.gl.UniformLocation(prog, "src"), 0)
	e.blit = &blitter{
		program: prog,
		sampler: e.sampler(SamplerDesc{Filter: shaderchain.FilterLinear}),
	}
	return e.blit, nil
}

func (b *blitter) draw(dst *Framebuffer, src source) {
	gl := dst.exec.gl
	gl.BindFramebuffer(dst.fbo)
	gl.Viewport(0, 0, dst.size.Width, dst.size.Height)
	gl.UseProgram(b.program)
	gl.BindTexture(0, src.glTexture())
	gl.BindSampler(0, b.sampler)
	gl.DrawQuad(dst.exec.quad)
}
