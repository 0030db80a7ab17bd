package gpudiag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// fakeRuntime scripts the NVML view of the machine.
type fakeRuntime struct {
	initErr  error
	devices  []Device
	badIndex int // index whose probe fails; -1 for none
	shutdown bool
}

func (f *fakeRuntime) Init() error { return f.initErr }
func (f *fakeRuntime) Shutdown()   { f.shutdown = true }

func (f *fakeRuntime) DeviceCount() (int, error) { return len(f.devices), nil }

func (f *fakeRuntime) DeviceInfo(i int) (Device, error) {
	if i == f.badIndex {
		return Device{}, fmt.Errorf("device unresponsive")
	}
	return f.devices[i], nil
}

func driverSees(n int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return n, nil }
}

func newChecker(rt Runtime, driver func(context.Context) (int, error)) *Checker {
	return &Checker{Runtime: rt, DriverCount: driver, Log: zerolog.Nop()}
}

func TestAllGPUsVisible(t *testing.T) {
	rt := &fakeRuntime{
		devices: []Device{
			{Index: 0, Name: "NVIDIA A10", MemoryTotal: 24 << 30, MemoryFree: 23 << 30},
			{Index: 1, Name: "NVIDIA A10", MemoryTotal: 24 << 30, MemoryFree: 24 << 30},
		},
		badIndex: -1,
	}
	c := newChecker(rt, driverSees(2))

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected OK report, failures: %v", report.Failures)
	}
	if len(report.Devices) != 2 {
		t.Fatalf("expected 2 probed devices, got %d", len(report.Devices))
	}
	if !rt.shutdown {
		t.Fatal("runtime must be shut down")
	}
}

func TestCountMismatchFails(t *testing.T) {
	rt := &fakeRuntime{
		devices:  []Device{{Index: 0, Name: "NVIDIA H100", MemoryTotal: 80 << 30}},
		badIndex: -1,
	}
	c := newChecker(rt, driverSees(8))

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OK() {
		t.Fatal("mismatched counts must not pass")
	}
	if len(report.Failures) == 0 {
		t.Fatal("expected a mismatch failure")
	}
}

func TestNoGPUsFails(t *testing.T) {
	rt := &fakeRuntime{badIndex: -1}
	c := newChecker(rt, driverSees(0))

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OK() {
		t.Fatal("zero GPUs must not pass")
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected a single driver-install hint, got %v", report.Failures)
	}
}

func TestUnresponsiveDeviceFails(t *testing.T) {
	rt := &fakeRuntime{
		devices: []Device{
			{Index: 0, Name: "NVIDIA A100", MemoryTotal: 40 << 30},
			{Index: 1, Name: "NVIDIA A100", MemoryTotal: 40 << 30},
		},
		badIndex: 1,
	}
	c := newChecker(rt, driverSees(2))

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OK() {
		t.Fatal("unresponsive device must not pass")
	}
	if len(report.Devices) != 1 {
		t.Fatalf("expected 1 healthy device, got %d", len(report.Devices))
	}
}

func TestZeroMemoryDeviceFails(t *testing.T) {
	rt := &fakeRuntime{
		devices:  []Device{{Index: 0, Name: "NVIDIA A10", MemoryTotal: 0}},
		badIndex: -1,
	}
	c := newChecker(rt, driverSees(1))

	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OK() {
		t.Fatal("zero-memory device must not pass")
	}
}

func TestInitFailureIsError(t *testing.T) {
	rt := &fakeRuntime{initErr: errors.New("driver/library version mismatch"), badIndex: -1}
	c := newChecker(rt, driverSees(1))

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected init error")
	}
}

func TestDriverCountErrorIsError(t *testing.T) {
	rt := &fakeRuntime{badIndex: -1}
	c := newChecker(rt, func(context.Context) (int, error) {
		return 0, errors.New("nvidia-smi not found")
	})

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected driver count error")
	}
}
