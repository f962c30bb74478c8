package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// resultEnvelope mirrors internal/rpcserver's response shape for every
// named-event endpoint.
type resultEnvelope struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}

type peerDTO struct {
	VK           string   `json:"vk"`
	Hostname     string   `json:"hostname"`
	Petname      string   `json:"petname,omitempty"`
	Enabled      bool     `json:"enabled"`
	Pinned       bool     `json:"pinned"`
	UseAsGateway bool     `json:"use_as_gateway"`
	Nicknames    []string `json:"nicknames"`
	Addrs        []string `json:"addrs"`
}

type prefsDTO struct {
	Bools map[string]bool      `json:"bools"`
	Lists map[string][]string  `json:"lists"`
}

// rpcClient is the HTTP/JSON client for internal/rpcserver, grounded on
// valonctl/pkg/client's fmt.Errorf("...: %w", err)-wrapped HTTP call
// style and its per-call context.WithTimeout idiom.
type rpcClient struct {
	baseURL string
	http    *http.Client
}

func newRPCClient(addr string) *rpcClient {
	return &rpcClient{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *rpcClient) postEvent(ctx context.Context, path string, body any) (*resultEnvelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env resultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", path, err)
	}
	return &env, nil
}

func (c *rpcClient) getJSON(ctx context.Context, path string, query url.Values, out any) (int, error) {
	u := c.baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response from %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *rpcClient) processDescriptorString(ctx context.Context, text string) (*resultEnvelope, error) {
	return c.postEvent(ctx, "/process_descriptor_string", map[string]string{"text": text})
}

func (c *rpcClient) userEdit(ctx context.Context, op, path string, value any) (*resultEnvelope, error) {
	return c.postEvent(ctx, "/user_edit", map[string]any{"op": op, "path": path, "value": value})
}

func (c *rpcClient) newSystemState(ctx context.Context, snapshot any) (*resultEnvelope, error) {
	return c.postEvent(ctx, "/new_system_state", snapshot)
}

func (c *rpcClient) releaseGateway(ctx context.Context) (*resultEnvelope, error) {
	return c.postEvent(ctx, "/release_gateway", nil)
}

func (c *rpcClient) expireTick(ctx context.Context) (*resultEnvelope, error) {
	return c.postEvent(ctx, "/expire_tick", nil)
}

func (c *rpcClient) showPeer(ctx context.Context, vk string) (*peerDTO, int, error) {
	var dto peerDTO
	status, err := c.getJSON(ctx, "/show_peer", url.Values{"vk": {vk}}, &dto)
	return &dto, status, err
}

func (c *rpcClient) showPrefs(ctx context.Context) (*prefsDTO, error) {
	var dto prefsDTO
	_, err := c.getJSON(ctx, "/show_prefs", nil, &dto)
	return &dto, err
}

func (c *rpcClient) peerIDs(ctx context.Context, which string) ([]string, int, error) {
	var ids []string
	status, err := c.getJSON(ctx, "/peer_ids", url.Values{"which": {which}}, &ids)
	return ids, status, err
}

func (c *rpcClient) ourLatestDescriptors(ctx context.Context) (map[string]string, error) {
	var descs map[string]string
	_, err := c.getJSON(ctx, "/our_latest_descriptors", nil, &descs)
	return descs, err
}
