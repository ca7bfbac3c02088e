// Package glgpu runs a shaderchain filter chain on an OpenGL 3.3 core
// context.
//
// It is the implicit back-end: there are no frames in flight to track, so
// framebuffers are resized and deleted on the spot and every draw goes
// straight to the driver. The GL calls it needs are behind the narrow GL
// interface; package glcore implements it with go-gl.
//
// Shaders are consumed as GLSL with their uniform blocks flattened into
// plain uniforms named UBO_<member> and PUSH_<member>. Each draw uploads
// the members from the packed uniform images the chain hands over.
// Sampled textures are bound to the texture unit equal to their binding.
//
// Texture row 0 is sampled at v = 0. A caller presenting to a window
// framebuffer flips the image with the MVP it passes to the chain.
//
// All methods must run on the goroutine that owns the GL context.
package glgpu
