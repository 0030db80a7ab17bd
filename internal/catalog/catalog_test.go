package catalog

import (
	"sort"
	"testing"
)

func TestRegionsForUnknownType(t *testing.T) {
	regions, ok := RegionsFor("gpu_999x_none")
	if ok {
		t.Fatal("expected not-found for unknown instance type")
	}
	if regions != nil {
		t.Fatalf("expected nil regions, got %v", regions)
	}
}

func TestRegionsForKnownType(t *testing.T) {
	regions, ok := RegionsFor("gpu_1x_a10")
	if !ok {
		t.Fatal("expected gpu_1x_a10 in catalog")
	}
	want := []string{"us-east-1", "us-west-1"}
	if len(regions) != len(want) {
		t.Fatalf("unexpected regions: %v", regions)
	}
	for i, r := range want {
		if regions[i] != r {
			t.Errorf("region %d: got %q, want %q", i, regions[i], r)
		}
	}
}

func TestRegionsForReturnsCopy(t *testing.T) {
	regions, _ := RegionsFor("gpu_1x_a10")
	regions[0] = "mutated"
	again, _ := RegionsFor("gpu_1x_a10")
	if again[0] != "us-east-1" {
		t.Fatal("catalog must be immutable to callers")
	}
}

func TestInstanceTypesSorted(t *testing.T) {
	types := InstanceTypes()
	if len(types) == 0 {
		t.Fatal("catalog is empty")
	}
	if !sort.StringsAreSorted(types) {
		t.Fatalf("expected sorted names, got %v", types)
	}
	if !Known("gpu_8x_h100_sxm5") {
		t.Fatal("expected gpu_8x_h100_sxm5 in catalog")
	}
}
