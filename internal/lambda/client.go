package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public Lambda Cloud API endpoint.
const DefaultBaseURL = "https://cloud.lambdalabs.com/api/v1"

const (
	queryTimeout  = 10 * time.Second
	launchTimeout = 100 * time.Second
)

// Client talks to the Lambda Cloud REST API. The API key is sent as the
// username half of HTTP basic auth on every request and is never persisted.
type Client struct {
	baseURL string
	apiKey  string
	query   *http.Client
	launch  *http.Client
}

// NewClient creates a client for the given API key. An empty baseURL selects
// the public endpoint. Launch operations use a longer timeout than queries
// since the provider may hold the request while scheduling instances.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		query:   &http.Client{Timeout: queryTimeout, Transport: transport},
		launch:  &http.Client{Timeout: launchTimeout, Transport: transport},
	}
}

// InstanceTypes fetches the live capacity snapshot: every instance type the
// account can launch, each with the regions that currently have capacity.
// Read-only and safe to repeat.
func (c *Client) InstanceTypes(ctx context.Context) (map[string]InstanceTypeOffer, error) {
	var out map[string]InstanceTypeOffer
	if err := c.do(ctx, c.query, http.MethodGet, "/instance-types", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SSHKeys lists the SSH keys registered with the account.
func (c *Client) SSHKeys(ctx context.Context) ([]SSHKey, error) {
	var out []SSHKey
	if err := c.do(ctx, c.query, http.MethodGet, "/ssh-keys", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddSSHKey registers a public key with the account.
func (c *Client) AddSSHKey(ctx context.Context, name, publicKey string) (SSHKey, error) {
	body := map[string]string{"name": name, "public_key": publicKey}
	var out SSHKey
	if err := c.do(ctx, c.query, http.MethodPost, "/ssh-keys", body, &out); err != nil {
		return SSHKey{}, err
	}
	return out, nil
}

// FileSystems lists the persistent file systems available to the account.
func (c *Client) FileSystems(ctx context.Context) ([]FileSystem, error) {
	var out []FileSystem
	if err := c.do(ctx, c.query, http.MethodGet, "/file-systems", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Instances lists the account's instances.
func (c *Client) Instances(ctx context.Context) ([]Instance, error) {
	var out []Instance
	if err := c.do(ctx, c.query, http.MethodGet, "/instances", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Instance fetches a single instance by ID.
func (c *Client) Instance(ctx context.Context, id string) (Instance, error) {
	var out Instance
	if err := c.do(ctx, c.query, http.MethodGet, "/instances/"+id, nil, &out); err != nil {
		return Instance{}, err
	}
	return out, nil
}

type launchData struct {
	InstanceIDs []string `json:"instance_ids"`
}

// Launch requests new instances and returns their IDs. It may create billable
// resources; callers must not re-issue a launch while a prior attempt for the
// same request is still in flight.
func (c *Client) Launch(ctx context.Context, p LaunchParams) ([]string, error) {
	if p.FileSystemNames == nil {
		p.FileSystemNames = []string{}
	}
	var out launchData
	if err := c.do(ctx, c.launch, http.MethodPost, "/instance-operations/launch", p, &out); err != nil {
		return nil, err
	}
	return out.InstanceIDs, nil
}

type terminateData struct {
	TerminatedInstances []Instance `json:"terminated_instances"`
}

// Terminate shuts down the given instances.
func (c *Client) Terminate(ctx context.Context, ids []string) ([]Instance, error) {
	body := map[string][]string{"instance_ids": ids}
	var out terminateData
	if err := c.do(ctx, c.launch, http.MethodPost, "/instance-operations/terminate", body, &out); err != nil {
		return nil, err
	}
	return out.TerminatedInstances, nil
}

// envelope is the API's uniform response wrapper: exactly one of data or
// error is present.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = strings.NewReader(string(buf))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("lambda api status %d: decode response: %w", resp.StatusCode, err)
	}
	if env.Error != nil {
		return env.Error
	}
	if env.Data == nil {
		return fmt.Errorf("lambda api status %d: response has neither data nor error", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
