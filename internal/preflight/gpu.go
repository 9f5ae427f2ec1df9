package preflight

import (
	"context"
	"os/exec"
	"sync"
	"time"
)

// GPUDetector reports whether an NVIDIA GPU is available for encoding and
// transcription. The probe result is cached for the process lifetime since
// GPUs do not come and go between jobs.
type GPUDetector struct {
	once      sync.Once
	available bool

	probe func(ctx context.Context) bool
}

// NewGPUDetector constructs a detector backed by nvidia-smi.
func NewGPUDetector() *GPUDetector {
	return &GPUDetector{probe: probeNvidiaSMI}
}

// NewGPUDetectorWithProbe constructs a detector with a custom probe for tests.
func NewGPUDetectorWithProbe(probe func(ctx context.Context) bool) *GPUDetector {
	return &GPUDetector{probe: probe}
}

// Available reports GPU availability, probing on first call.
func (d *GPUDetector) Available(ctx context.Context) bool {
	d.once.Do(func() {
		if d.probe != nil {
			d.available = d.probe(ctx)
		}
	})
	return d.available
}

func probeNvidiaSMI(ctx context.Context) bool {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return exec.CommandContext(probeCtx, path, "-L").Run() == nil
}
