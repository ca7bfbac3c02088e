package shaderchain

import (
	"fmt"

	"github.com/gogpu/shaderchain/semantics"
)

// FrameInfo holds the counters exposed to shaders each frame.
type FrameInfo struct {
	Count     uint32
	Direction int32 // 1 forward, -1 while rewinding

	// Rotation counts quarter turns of the display.
	Rotation uint32

	TotalSubFrames  uint32
	CurrentSubFrame uint32
}

type frameInput struct {
	input    Image
	viewport Viewport
	mvp      [16]float32
	info     FrameInfo
}

var identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

func defaultFrame() frameInput {
	return frameInput{
		mvp:  identity,
		info: FrameInfo{Direction: 1, TotalSubFrames: 1, CurrentSubFrame: 1},
	}
}

// SetInput sets the frame the chain filters. It is sampled as Original and
// as the first pass's Source.
func (c *Chain) SetInput(img Image) { c.frame.input = img }

// SetViewport sets the rectangle the final pass draws to.
func (c *Chain) SetViewport(vp Viewport) { c.frame.viewport = vp }

// SetMVP sets the transform of the final pass. nil restores identity.
// Offscreen passes always use identity.
func (c *Chain) SetMVP(m *[16]float32) {
	if m == nil {
		c.frame.mvp = identity
		return
	}
	c.frame.mvp = *m
}

// SetFrame sets the frame counters.
func (c *Chain) SetFrame(info FrameInfo) { c.frame.info = info }

// SetSyncIndex selects the in-flight frame slot on executors that keep
// several frames in flight. Other executors ignore it.
func (c *Chain) SetSyncIndex(i int) {
	if si, ok := c.exec.(SyncIndexer); ok {
		si.SetSyncIndex(i)
	}
}

func (c *Chain) ready() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.state == nil:
		return ErrNotBuilt
	case c.frame.input == nil:
		return ErrNoInput
	}
	return nil
}

// prepare sizes the pass framebuffers for this frame and performs the
// one-time history and feedback setup after a build.
func (c *Chain) prepare(cmd Commands) error {
	s := c.state
	if s.prepared {
		return nil
	}
	in := c.frame.input
	vp := c.frame.viewport.Size()
	source := in.Size()
	last := len(s.passes) - 1
	for i, p := range s.passes {
		if i == last {
			p.size = vp
			break
		}
		size := OutputSize(&p.cfg, in.Size(), source, vp, c.frame.info.Rotation)
		levels := 1
		if s.passes[i+1].cfg.MipmapInput {
			levels = MipLevels(size, p.cfg.MaxMipLevels)
		}
		changed, err := p.output.Resize(size, p.format, levels)
		if err != nil {
			return fmt.Errorf("shaderchain: pass %d: %w", i, err)
		}
		if changed {
			c.log.Debug("shaderchain: resized pass output",
				"pass", i, "width", size.Width, "height", size.Height,
				"format", p.output.Format(), "levels", levels)
		}
		if p.feedback != nil {
			if _, err := p.feedback.Resize(size, p.format, levels); err != nil {
				return fmt.Errorf("shaderchain: feedback %d: %w", i, err)
			}
		}
		p.size = size
		source = size
	}

	// History slots are sized here once. Afterwards only EndFrame resizes,
	// and only the slot it recycles.
	if s.needsClear {
		for k, fb := range s.history {
			if _, err := fb.Resize(in.Size(), in.Format(), 1); err != nil {
				return fmt.Errorf("shaderchain: history %d: %w", k+1, err)
			}
			if err := c.exec.Clear(cmd, fb); err != nil {
				return err
			}
		}
		for _, p := range s.passes {
			if p.feedback != nil {
				if err := c.exec.Clear(cmd, p.feedback); err != nil {
					return err
				}
			}
		}
		s.needsClear = false
	}
	s.prepared = true
	return nil
}

// RunOffscreen draws every pass except the last into its framebuffer.
func (c *Chain) RunOffscreen(cmd Commands) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.prepare(cmd); err != nil {
		return err
	}
	s := c.state
	var source Image = c.frame.input
	for _, p := range s.passes[:len(s.passes)-1] {
		if err := c.mipmapSource(cmd, p); err != nil {
			return err
		}
		dc := &DrawCall{
			Commands: cmd,
			Target:   p.output,
			Viewport: Viewport{Width: p.size.Width, Height: p.size.Height},
		}
		if err := c.draw(p, source, &identity, dc); err != nil {
			return fmt.Errorf("shaderchain: pass %d: %w", p.index, err)
		}
		source = p.output
	}
	return nil
}

// RunFinal draws the last pass into target, inside whatever render pass
// the caller has open.
func (c *Chain) RunFinal(cmd Commands, target DrawTarget) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.prepare(cmd); err != nil {
		return err
	}
	s := c.state
	p := s.passes[len(s.passes)-1]
	if err := c.mipmapSource(cmd, p); err != nil {
		return err
	}
	dc := &DrawCall{
		Commands: cmd,
		Final:    target,
		Viewport: c.frame.viewport,
	}
	if err := c.draw(p, c.sourceOf(p), &c.frame.mvp, dc); err != nil {
		return fmt.Errorf("shaderchain: final pass: %w", err)
	}
	return nil
}

// EndFrame swaps feedback framebuffers and pushes the input into history.
func (c *Chain) EndFrame(cmd Commands) error {
	if err := c.ready(); err != nil {
		return err
	}
	s := c.state
	for _, p := range s.passes {
		if p.feedback != nil {
			p.output, p.feedback = p.feedback, p.output
		}
	}
	if n := len(s.history); n > 0 {
		in := c.frame.input
		oldest := s.history[n-1]
		if _, err := oldest.Resize(in.Size(), in.Format(), 1); err != nil {
			return fmt.Errorf("shaderchain: history: %w", err)
		}
		if err := c.exec.Copy(cmd, oldest, in); err != nil {
			return fmt.Errorf("shaderchain: history: %w", err)
		}
		copy(s.history[1:], s.history[:n-1])
		s.history[0] = oldest
	}
	s.prepared = false
	return nil
}

func (c *Chain) mipmapSource(cmd Commands, p *pass) error {
	if !p.cfg.MipmapInput || p.index == 0 {
		return nil
	}
	prev := c.state.passes[p.index-1].output
	if prev.Levels() <= 1 {
		return nil
	}
	return c.exec.GenerateMipmaps(cmd, prev)
}

func (c *Chain) sourceOf(p *pass) Image {
	if p.index == 0 {
		return c.frame.input
	}
	return c.state.passes[p.index-1].output
}

func (c *Chain) draw(p *pass, source Image, mvp *[16]float32, dc *DrawCall) error {
	c.pack(p, source, mvp)
	dc.UBO = p.ubo
	dc.Push = p.push
	dc.Textures = c.bind(p, source)
	return p.program.Draw(dc)
}

// resolve returns the image a texture reference reads in pass p, and the
// pass configuration whose sampling settings apply. Original and history
// sample like the first pass's Source, pass outputs and feedback like the
// Source of the pass after their producer.
func (c *Chain) resolve(p *pass, source Image, ref semantics.TextureRef) (Image, *PassConfig) {
	s := c.state
	first := &s.passes[0].cfg
	switch ref.Semantic {
	case semantics.Original:
		return c.frame.input, first
	case semantics.Source:
		return source, &p.cfg
	case semantics.OriginalHistory:
		if ref.Index == 0 {
			return c.frame.input, first
		}
		if ref.Index <= len(s.history) {
			return s.history[ref.Index-1], first
		}
	case semantics.PassOutput:
		if ref.Index < p.index {
			return s.passes[ref.Index].output, &s.passes[ref.Index+1].cfg
		}
	case semantics.PassFeedback:
		if ref.Index < p.index && s.passes[ref.Index].feedback != nil {
			return s.passes[ref.Index].feedback, &s.passes[ref.Index+1].cfg
		}
	}
	return nil, nil
}

func (c *Chain) bind(p *pass, source Image) []BoundTexture {
	var out []BoundTexture
	for _, st := range p.refl.SampledTextures() {
		if st.Ref.Semantic == semantics.User {
			if st.Ref.Index >= len(c.state.luts) {
				continue
			}
			l := c.state.luts[st.Ref.Index]
			out = append(out, BoundTexture{
				Binding:   st.Binding.Binding,
				Image:     l.tex,
				Filter:    l.Filter.resolve(),
				MipFilter: l.MipFilter.resolve(),
				Wrap:      l.Wrap,
			})
			continue
		}
		img, cfg := c.resolve(p, source, st.Ref)
		if img == nil {
			continue
		}
		out = append(out, BoundTexture{
			Binding:   st.Binding.Binding,
			Image:     img,
			Filter:    cfg.Filter.resolve(),
			MipFilter: cfg.MipFilter.resolve(),
			Wrap:      cfg.Wrap,
		})
	}
	return out
}
