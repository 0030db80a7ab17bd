package lambda

import "fmt"

// Region identifies a Lambda Cloud region.
type Region struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// InstanceTypeSpecs describes the hardware behind an instance type.
type InstanceTypeSpecs struct {
	VCPUs      int `json:"vcpus"`
	MemoryGiB  int `json:"memory_gib"`
	StorageGiB int `json:"storage_gib"`
}

// InstanceType is a provider SKU (GPU/CPU/memory configuration).
type InstanceType struct {
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	PriceCentsPerHour int               `json:"price_cents_per_hour"`
	Specs             InstanceTypeSpecs `json:"specs"`
}

// InstanceTypeOffer is one entry of the capacity snapshot: the SKU plus the
// regions that currently have capacity for it, in provider order.
type InstanceTypeOffer struct {
	InstanceType                 InstanceType `json:"instance_type"`
	RegionsWithCapacityAvailable []Region     `json:"regions_with_capacity_available"`
}

// SSHKey is a public key registered with the account.
type SSHKey struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

// FileSystem is a persistent volume attachable at launch.
type FileSystem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MountPoint string `json:"mount_point"`
	Region     Region `json:"region"`
	InUse      bool   `json:"is_in_use"`
}

// Instance is a running (or booting) cloud instance.
type Instance struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	IP           string       `json:"ip"`
	Status       string       `json:"status"`
	Hostname     string       `json:"hostname"`
	Region       Region       `json:"region"`
	InstanceType InstanceType `json:"instance_type"`
	SSHKeyNames  []string     `json:"ssh_key_names"`
}

// LaunchParams is the body of an instance launch operation. RegionName may be
// empty, which leaves region selection to the provider.
type LaunchParams struct {
	RegionName       string   `json:"region_name"`
	InstanceTypeName string   `json:"instance_type_name"`
	SSHKeyNames      []string `json:"ssh_key_names"`
	FileSystemNames  []string `json:"file_system_names"`
	Quantity         int      `json:"quantity"`
}

// CodeInsufficientCapacity is the error code the launch endpoint returns when
// the requested instance type has no capacity in the requested region.
const CodeInsufficientCapacity = "instance-operations/launch/insufficient-capacity"

// APIError is an application-level error returned by the Lambda API.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lambda api error %s: %s", e.Code, e.Message)
}

// InsufficientCapacity reports whether the error is the retryable
// out-of-capacity condition. Both the full operation-qualified code and the
// bare "insufficient-capacity" suffix are accepted; the API has used both.
func (e *APIError) InsufficientCapacity() bool {
	if e.Code == CodeInsufficientCapacity {
		return true
	}
	return e.Code == "insufficient-capacity"
}
