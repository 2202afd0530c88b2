package backend

import (
	"context"
	"log/slog"
	"os/exec"
	"runtime"
	"time"
)

// Device is the compute device the local backends run on.
type Device string

const (
	DeviceCUDA  Device = "cuda"
	DeviceMetal Device = "metal"
	DeviceCPU   Device = "cpu"
)

// Precision is the numeric precision of the model weights at runtime.
type Precision string

const (
	PrecisionF16 Precision = "f16"
	PrecisionF32 Precision = "f32"
)

// Accelerator is the process-wide device choice shared by every local backend.
type Accelerator struct {
	Device    Device
	Precision Precision
}

// Accelerated reports whether a GPU is in use.
func (a Accelerator) Accelerated() bool {
	return a.Device != DeviceCPU
}

// ProbeFunc detects the best available device.
type ProbeFunc func() Device

// SelectAccelerator resolves the configured device ("auto", "cuda", "metal",
// "cpu") into an Accelerator. Half precision is tied to GPUs, CPUs run f32.
func SelectAccelerator(requested string, probe ProbeFunc) Accelerator {
	var device Device
	switch requested {
	case string(DeviceCUDA), string(DeviceMetal), string(DeviceCPU):
		device = Device(requested)
	default:
		device = probe()
	}

	acc := Accelerator{Device: device, Precision: PrecisionF32}
	if acc.Accelerated() {
		acc.Precision = PrecisionF16
	}

	slog.Info("Compute device selected", "requested", requested, "device", acc.Device, "precision", acc.Precision)
	return acc
}

// DetectDevice probes the host: Apple Silicon gets Metal, a responding
// nvidia-smi gets CUDA, everything else falls back to the CPU.
func DetectDevice() Device {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return DeviceMetal
	}

	bin, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return DeviceCPU
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if out, err := exec.CommandContext(ctx, bin, "-L").Output(); err != nil || len(out) == 0 {
		slog.Debug("nvidia-smi present but no GPU listed", "error", err)
		return DeviceCPU
	}

	return DeviceCUDA
}
