package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoSendsKeyAsBasicAuthUsername(t *testing.T) {
	var gotUser, gotPass string
	var gotAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotAuth = r.BasicAuth()
		w.Write([]byte(`{"data": {}}`))
	}))
	defer srv.Close()

	c := NewClient("secret-key", srv.URL)
	if _, err := c.InstanceTypes(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotAuth || gotUser != "secret-key" || gotPass != "" {
		t.Fatalf("expected basic auth with key as username, got user=%q pass=%q ok=%v", gotUser, gotPass, gotAuth)
	}
}

func TestInstanceTypesParsesCapacitySnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instance-types" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data": {
			"gpu_1x_a10": {
				"instance_type": {"name": "gpu_1x_a10", "price_cents_per_hour": 60},
				"regions_with_capacity_available": [{"name": "us-east-1"}, {"name": "us-west-1"}]
			}
		}}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	offers, err := c.InstanceTypes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	offer, ok := offers["gpu_1x_a10"]
	if !ok {
		t.Fatal("missing gpu_1x_a10 offer")
	}
	if len(offer.RegionsWithCapacityAvailable) != 2 || offer.RegionsWithCapacityAvailable[0].Name != "us-east-1" {
		t.Fatalf("unexpected regions: %v", offer.RegionsWithCapacityAvailable)
	}
	if offer.InstanceType.PriceCentsPerHour != 60 {
		t.Fatalf("unexpected price: %d", offer.InstanceType.PriceCentsPerHour)
	}
}

func TestLaunchSendsBodyAndParsesIDs(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/instance-operations/launch" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"data": {"instance_ids": ["i-123"]}}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	ids, err := c.Launch(context.Background(), LaunchParams{
		RegionName:       "us-east-1",
		InstanceTypeName: "gpu_1x_a10",
		SSHKeyNames:      []string{"work"},
		Quantity:         2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "i-123" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if body["region_name"] != "us-east-1" || body["instance_type_name"] != "gpu_1x_a10" {
		t.Fatalf("unexpected body: %v", body)
	}
	// file_system_names must be present as an empty list, not null.
	fs, ok := body["file_system_names"].([]interface{})
	if !ok || len(fs) != 0 {
		t.Fatalf("expected empty file_system_names list, got %v", body["file_system_names"])
	}
	if q, ok := body["quantity"].(float64); !ok || q != 2 {
		t.Fatalf("unexpected quantity: %v", body["quantity"])
	}
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": "instance-operations/launch/insufficient-capacity", "message": "Not enough capacity."}}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	_, err := c.Launch(context.Background(), LaunchParams{InstanceTypeName: "gpu_1x_a10", Quantity: 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if !apiErr.InsufficientCapacity() {
		t.Fatalf("expected insufficient capacity, got code %q", apiErr.Code)
	}
}

func TestInsufficientCapacityCodeForms(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{CodeInsufficientCapacity, true},
		{"insufficient-capacity", true},
		{"invalid-ssh-key", false},
		{"", false},
	}
	for _, tc := range cases {
		e := &APIError{Code: tc.code}
		if got := e.InsufficientCapacity(); got != tc.want {
			t.Errorf("code %q: got %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestMalformedResponseIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	_, err := c.SSHKeys(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("malformed response must not become an APIError: %v", err)
	}
}

func TestEmptyEnvelopeIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	if _, err := c.FileSystems(context.Background()); err == nil {
		t.Fatal("expected error for envelope with neither data nor error")
	}
}

func TestTerminateRoundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instance-operations/terminate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body["instance_ids"]) != 2 {
			t.Errorf("unexpected ids: %v", body["instance_ids"])
		}
		w.Write([]byte(`{"data": {"terminated_instances": [{"id": "i-1", "status": "terminating"}]}}`))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	instances, err := c.Terminate(context.Background(), []string{"i-1", "i-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(instances) != 1 || instances[0].ID != "i-1" {
		t.Fatalf("unexpected instances: %v", instances)
	}
}
