package gpudiag

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlRuntime is the real NVML-backed Runtime.
type nvmlRuntime struct{}

func (nvmlRuntime) Init() error {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return fmt.Errorf("initialize NVML: %s", nvml.ErrorString(ret))
	}
	return nil
}

func (nvmlRuntime) Shutdown() {
	_ = nvml.Shutdown()
}

func (nvmlRuntime) DeviceCount() (int, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("get device count: %s", nvml.ErrorString(ret))
	}
	return count, nil
}

func (nvmlRuntime) DeviceInfo(index int) (Device, error) {
	dev, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return Device{}, fmt.Errorf("get device handle: %s", nvml.ErrorString(ret))
	}
	name, ret := dev.GetName()
	if ret != nvml.SUCCESS {
		return Device{}, fmt.Errorf("get device name: %s", nvml.ErrorString(ret))
	}
	mem, ret := dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return Device{}, fmt.Errorf("get memory info: %s", nvml.ErrorString(ret))
	}
	return Device{
		Index:       index,
		Name:        name,
		MemoryTotal: mem.Total,
		MemoryFree:  mem.Free,
	}, nil
}
