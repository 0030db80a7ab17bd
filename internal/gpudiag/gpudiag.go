// Package gpudiag verifies that every GPU the driver reports is also visible
// to the NVML runtime and responds to basic queries. A machine passes when
// the driver and runtime agree on the device count and every device can be
// probed individually.
package gpudiag

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Device is one GPU as seen by the runtime.
type Device struct {
	Index       int
	Name        string
	MemoryTotal uint64
	MemoryFree  uint64
}

// Report is the outcome of a diagnostic run.
type Report struct {
	DriverCount  int
	RuntimeCount int
	Devices      []Device
	Failures     []string
}

// OK reports whether all GPUs are visible and usable.
func (r *Report) OK() bool {
	return r.DriverCount > 0 && r.DriverCount == r.RuntimeCount && len(r.Failures) == 0
}

// Runtime abstracts the NVML library so the checker is testable without
// GPU hardware.
type Runtime interface {
	Init() error
	Shutdown()
	DeviceCount() (int, error)
	DeviceInfo(index int) (Device, error)
}

// Checker runs the diagnostic. Zero-value fields fall back to the real NVML
// runtime and nvidia-smi.
type Checker struct {
	Runtime Runtime

	// DriverCount returns the number of GPUs the driver sees, independent of
	// the runtime. Defaults to counting nvidia-smi -L output.
	DriverCount func(ctx context.Context) (int, error)

	Log zerolog.Logger
}

// Run compares the driver's view of the machine against the runtime's and
// probes each runtime-visible device. A mismatch or probe failure is recorded
// in the report rather than returned as an error; errors are reserved for not
// being able to ask the question at all.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	rt := c.Runtime
	if rt == nil {
		rt = nvmlRuntime{}
	}
	driverCount := c.DriverCount
	if driverCount == nil {
		driverCount = SMIDeviceCount
	}

	report := &Report{}

	n, err := driverCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("query driver device count: %w", err)
	}
	report.DriverCount = n
	c.Log.Info().Int("count", n).Msg("driver-visible GPUs")

	if err := rt.Init(); err != nil {
		return nil, err
	}
	defer rt.Shutdown()

	count, err := rt.DeviceCount()
	if err != nil {
		return nil, err
	}
	report.RuntimeCount = count
	c.Log.Info().Int("count", count).Msg("runtime-visible GPUs")

	if report.DriverCount == 0 {
		report.Failures = append(report.Failures,
			"no GPUs available; make sure NVIDIA drivers are properly installed")
		return report, nil
	}
	if report.DriverCount != report.RuntimeCount {
		report.Failures = append(report.Failures, fmt.Sprintf(
			"driver reports %d GPUs but the runtime sees %d; not all GPUs are usable",
			report.DriverCount, report.RuntimeCount))
	}

	for i := 0; i < count; i++ {
		dev, err := rt.DeviceInfo(i)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("GPU %d: %v", i, err))
			continue
		}
		if dev.MemoryTotal == 0 {
			report.Failures = append(report.Failures, fmt.Sprintf("GPU %d (%s): reports zero memory", i, dev.Name))
			continue
		}
		c.Log.Info().
			Int("index", i).
			Str("name", dev.Name).
			Uint64("memory_total", dev.MemoryTotal).
			Uint64("memory_free", dev.MemoryFree).
			Msg("GPU responding")
		report.Devices = append(report.Devices, dev)
	}

	return report, nil
}

// SMIDeviceCount counts GPUs via `nvidia-smi -L`, one line per device.
func SMIDeviceCount(ctx context.Context) (int, error) {
	out, err := exec.CommandContext(ctx, "nvidia-smi", "-L").Output()
	if err != nil {
		return 0, fmt.Errorf("run nvidia-smi: %w", err)
	}
	count := 0
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "GPU ") {
			count++
		}
	}
	return count, nil
}
