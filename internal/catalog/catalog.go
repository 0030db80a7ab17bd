// Package catalog embeds the known instance types and the regions they have
// historically been offered in. It backs client-side input validation only;
// the live /instance-types endpoint is authoritative and this table is
// expected to drift over time.
package catalog

import "sort"

var instanceTypeRegions = map[string][]string{
	"gpu_8x_h100_sxm5":       {"us-west-3"},
	"gpu_1x_h100_pcie":       {"us-west-3"},
	"gpu_8x_a100_80gb_sxm4":  {"us-midwest-1"},
	"gpu_1x_a10":             {"us-east-1", "us-west-1"},
	"gpu_1x_rtx6000":         {"us-south-1"},
	"gpu_1x_a100":            {"us-south-1"},
	"gpu_1x_a100_sxm4":       {"us-east-1", "us-west-2", "asia-south-1"},
	"gpu_2x_a100":            {"us-south-1"},
	"gpu_4x_a100":            {"us-south-1"},
	"gpu_8x_a100":            {"me-west-1", "asia-northeast-2", "us-west-2", "us-west-1", "europe-central-1", "asia-northeast-1", "us-east-1"},
	"gpu_1x_a6000":           {"us-south-1"},
	"gpu_2x_a6000":           {"us-south-1"},
	"gpu_4x_a6000":           {"us-south-1"},
	"gpu_8x_v100":            {"us-south-1"},
	"cpu_4x_general":         {"not available"},
	"gpu_8x_h100_sxm5raidz1": {"us-south-2"},
}

// InstanceTypes returns all known instance type names, sorted.
func InstanceTypes() []string {
	names := make([]string, 0, len(instanceTypeRegions))
	for name := range instanceTypeRegions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegionsFor returns the known regions for an instance type. The second
// return is false when the type is not in the catalog.
func RegionsFor(instanceType string) ([]string, bool) {
	regions, ok := instanceTypeRegions[instanceType]
	if !ok {
		return nil, false
	}
	out := make([]string, len(regions))
	copy(out, regions)
	return out, true
}

// Known reports whether the instance type is in the catalog.
func Known(instanceType string) bool {
	_, ok := instanceTypeRegions[instanceType]
	return ok
}
