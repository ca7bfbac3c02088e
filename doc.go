// Package shaderchain runs multi-pass GPU post-processing filters.
//
// # Overview
//
// A chain is an ordered list of passes. Each pass is one shader file that
// holds a vertex and a fragment stage, annotated with pragmas, and draws a
// full screen quad into its own framebuffer. The next pass samples that
// framebuffer as its Source. The last pass draws into the caller's target.
//
// Passes also see the unprocessed input (Original), earlier input frames
// (OriginalHistory1..N), the output of any earlier pass in this frame
// (PassOutputN), the output of any pass in the previous frame
// (PassFeedbackN) and user lookup textures. Passes and lookup textures can
// be referred to by alias.
//
// # Quick Start
//
//	exec, _ := halgpu.New(device, queue, halgpu.Options{})
//	chain := shaderchain.New(exec, shaderchain.WithLogger(slog.Default()))
//	defer chain.Close()
//
//	p, _ := preset.Load("crt.toml")
//	if err := chain.Build(p.Passes); err != nil {
//		return err
//	}
//
//	// every frame
//	chain.SetInput(frame)
//	chain.SetViewport(shaderchain.Viewport{Width: w, Height: h})
//	chain.SetFrame(shaderchain.FrameInfo{Count: n, Direction: 1})
//	chain.RunOffscreen(enc)
//	chain.RunFinal(enc, halgpu.FinalTarget{Pass: rp})
//	chain.EndFrame(enc)
//
// # Shader sources
//
// Sources are read by the preprocess package, which expands includes,
// collects name, format and parameter pragmas and splits the stages. The
// compile package lowers each stage to IR, the reflection package matches
// the resources to semantics and the crosscompile package translates the
// stages for the executor.
//
// # Executors
//
// The chain draws through an Executor. backend/halgpu is the explicit
// back-end: commands are recorded by the caller, per-frame resources are
// replicated and released resources wait for their sync index. backend/glgpu
// is the implicit back-end on an OpenGL context.
//
// # Logging
//
// The chain logs through log/slog. It is silent unless a logger is passed
// with WithLogger or installed with SetLogger.
package shaderchain
