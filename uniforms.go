package shaderchain

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/shaderchain/reflection"
	"github.com/gogpu/shaderchain/semantics"
)

// blockWriter writes values into a pass's uniform and push byte images at
// reflected offsets, little endian.
type blockWriter struct {
	ubo  []byte
	push []byte
}

func (w blockWriter) put(active bool, dst []byte, off uint32, words []uint32) {
	if !active || int(off)+4*len(words) > len(dst) {
		return
	}
	for i, v := range words {
		binary.LittleEndian.PutUint32(dst[int(off)+4*i:], v)
	}
}

func (w blockWriter) words(b reflection.Buffer, words ...uint32) {
	w.put(b.UBOActive, w.ubo, b.UBOOffset, words)
	w.put(b.PushActive, w.push, b.PushOffset, words)
}

func (w blockWriter) floats(b reflection.Buffer, v ...float32) {
	if !b.Active() {
		return
	}
	words := make([]uint32, len(v))
	for i, f := range v {
		words[i] = math.Float32bits(f)
	}
	w.words(b, words...)
}

func sizeVec(s Size) []uint32 {
	w, h := float32(s.Width), float32(s.Height)
	return []uint32{
		math.Float32bits(w),
		math.Float32bits(h),
		math.Float32bits(1 / w),
		math.Float32bits(1 / h),
	}
}

func (w blockWriter) textureSize(t reflection.TextureBinding, s Size) {
	if s.Empty() {
		return
	}
	v := sizeVec(s)
	w.put(t.SizeUBOActive, w.ubo, t.SizeUBOOffset, v)
	w.put(t.SizePushActive, w.push, t.SizePushOffset, v)
}

// pack fills the pass's uniform and push images for this frame.
func (c *Chain) pack(p *pass, source Image, mvp *[16]float32) {
	clear(p.ubo)
	clear(p.push)
	w := blockWriter{ubo: p.ubo, push: p.push}
	sem := &p.refl.Semantics
	info := c.frame.info

	w.floats(sem[semantics.MVP], mvp[:]...)
	if !p.size.Empty() {
		w.words(sem[semantics.OutputSize], sizeVec(p.size)...)
	}
	if vp := c.frame.viewport.Size(); !vp.Empty() {
		w.words(sem[semantics.FinalViewportSize], sizeVec(vp)...)
	}
	count := info.Count
	if p.cfg.FrameCountMod > 0 {
		count %= p.cfg.FrameCountMod
	}
	w.words(sem[semantics.FrameCount], count)
	w.words(sem[semantics.FrameDirection], uint32(info.Direction))
	w.words(sem[semantics.Rotation], info.Rotation)
	w.words(sem[semantics.TotalSubFrames], info.TotalSubFrames)
	w.words(sem[semantics.CurrentSubFrame], info.CurrentSubFrame)

	for idx, b := range p.refl.Parameters {
		if idx >= 0 && idx < len(c.state.params) {
			w.floats(b, c.state.params[idx].Value)
		}
	}

	for t := semantics.Texture(0); t < semantics.NumTextures; t++ {
		for i, tb := range p.refl.Textures[t] {
			if !tb.SizeActive() {
				continue
			}
			ref := semantics.TextureRef{Semantic: t, Index: i}
			var img Image
			if t == semantics.User {
				if i < len(c.state.luts) {
					img = c.state.luts[i].tex
				}
			} else {
				img, _ = c.resolve(p, source, ref)
			}
			if img != nil {
				w.textureSize(tb, img.Size())
			}
		}
	}
}
