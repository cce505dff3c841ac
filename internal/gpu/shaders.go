package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

// Embedded WGSL stage programs. Every stage uses vs_main and fs_main.

//go:embed shaders/simulation.wgsl
var simulationShaderSource string

//go:embed shaders/render.wgsl
var renderShaderSource string

//go:embed shaders/present.wgsl
var presentShaderSource string

// stageSource names one embedded stage program.
type stageSource struct {
	name   string
	source string
}

func stageSources() []stageSource {
	return []stageSource{
		{"simulation", simulationShaderSource},
		{"render", renderShaderSource},
		{"present", presentShaderSource},
	}
}

// ValidateShaders compiles every embedded stage program to SPIR-V.
func ValidateShaders() error {
	for _, s := range stageSources() {
		if s.source == "" {
			return fmt.Errorf("gpu: %s shader source is empty", s.name)
		}
		spv, err := naga.Compile(s.source)
		if err != nil {
			return fmt.Errorf("gpu: compile %s shader: %w", s.name, err)
		}
		if len(spv) < 4 {
			return fmt.Errorf("gpu: %s shader produced %d bytes of SPIR-V", s.name, len(spv))
		}
	}
	return nil
}
