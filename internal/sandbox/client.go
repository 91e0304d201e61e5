// Package sandbox drives a remote ephemeral-VM service over its REST API.
// Every run is one sandbox: create, install the fixed package set, write the
// script, execute it, optionally read one output file, and always tear the
// sandbox down before returning.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	scriptPath     = "/tmp/script.py"
	installCommand = "pip install pandas matplotlib seaborn requests"
	installTimeout = 120 * time.Second
)

// Execution is the outcome of one sandboxed script run. Client and
// transport failures are folded into a failed Execution rather than
// returned as errors; the agents treat every failure the same way.
type Execution struct {
	Stdout  string
	Stderr  string
	Success bool
	File    []byte
}

// Runner executes untrusted generated scripts.
type Runner interface {
	RunScript(ctx context.Context, code string, timeout time.Duration) Execution
	RunScriptWithFile(ctx context.Context, code, outputPath string, timeout time.Duration) Execution
}

type Client struct {
	BaseURL  string
	APIKey   string
	Template string
	Client   *http.Client
}

func NewClient(baseURL, apiKey, template string) *Client {
	if template == "" {
		template = "base"
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		Template: template,
		// Per-command timeouts are enforced server side; this bounds a
		// single HTTP round trip.
		Client: &http.Client{Timeout: 150 * time.Second},
	}
}

type createReq struct {
	Template string `json:"template"`
}

type createResp struct {
	SandboxID string `json:"sandboxId"`
}

type commandReq struct {
	Command   string `json:"command"`
	TimeoutMs int64  `json:"timeoutMs"`
}

type commandResp struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// RunScript executes code with the fixed package set installed and returns
// stdout/stderr/exit status.
func (c *Client) RunScript(ctx context.Context, code string, timeout time.Duration) Execution {
	return c.run(ctx, code, "", timeout)
}

// RunScriptWithFile is RunScript plus a best-effort read of one output file
// the script is expected to produce. A missing output file is not an
// execution failure by itself; callers check Execution.File.
func (c *Client) RunScriptWithFile(ctx context.Context, code, outputPath string, timeout time.Duration) Execution {
	return c.run(ctx, code, outputPath, timeout)
}

func (c *Client) run(ctx context.Context, code, outputPath string, timeout time.Duration) Execution {
	id, err := c.create(ctx)
	if err != nil {
		log.Printf("[Sandbox] create failed: %v", err)
		return Execution{Stderr: err.Error()}
	}
	defer func() {
		if err := c.kill(ctx, id); err != nil {
			log.Printf("[Sandbox] failed to kill sandbox %s: %v", id, err)
		}
	}()

	if _, err := c.command(ctx, id, installCommand, installTimeout); err != nil {
		log.Printf("[Sandbox] package install failed: %v", err)
		return Execution{Stderr: err.Error()}
	}

	if err := c.writeFile(ctx, id, scriptPath, []byte(code)); err != nil {
		log.Printf("[Sandbox] write script failed: %v", err)
		return Execution{Stderr: err.Error()}
	}

	result, err := c.command(ctx, id, "python "+scriptPath, timeout)
	if err != nil {
		log.Printf("[Sandbox] execution failed: %v", err)
		return Execution{Stderr: err.Error()}
	}

	exec := Execution{
		Stdout:  result.Stdout,
		Stderr:  result.Stderr,
		Success: result.ExitCode == 0,
	}

	if outputPath != "" {
		data, err := c.readFile(ctx, id, outputPath)
		if err != nil {
			log.Printf("[Sandbox] could not read output file %s: %v", outputPath, err)
		} else {
			exec.File = data
		}
	}

	return exec
}

func (c *Client) create(ctx context.Context) (string, error) {
	body, err := json.Marshal(createReq{Template: c.Template})
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, c.BaseURL+"/sandboxes", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create sandbox: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("create sandbox: %w", err)
	}

	var decoded createResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("create sandbox: %w", err)
	}
	if decoded.SandboxID == "" {
		return "", fmt.Errorf("create sandbox: empty sandbox id")
	}
	return decoded.SandboxID, nil
}

func (c *Client) command(ctx context.Context, id, cmd string, timeout time.Duration) (*commandResp, error) {
	body, err := json.Marshal(commandReq{Command: cmd, TimeoutMs: timeout.Milliseconds()})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, c.BaseURL+"/sandboxes/"+id+"/commands", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("run command: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("run command: %w", err)
	}

	var decoded commandResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("run command: %w", err)
	}
	return &decoded, nil
}

func (c *Client) writeFile(ctx context.Context, id, path string, data []byte) error {
	u := c.BaseURL + "/sandboxes/" + id + "/files?path=" + url.QueryEscape(path)
	resp, err := c.do(ctx, http.MethodPut, u, "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (c *Client) readFile(ctx context.Context, id, path string) ([]byte, error) {
	u := c.BaseURL + "/sandboxes/" + id + "/files?path=" + url.QueryEscape(path)
	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) kill(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.BaseURL+"/sandboxes/"+id, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.Client.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
}
