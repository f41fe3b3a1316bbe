package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/igolaizola/musicgen/pkg/model/wire"
	"github.com/igolaizola/musicgen/pkg/music"
)

type Client struct {
	client   *http.Client
	endpoint string
	token    string
	debug    bool
	model    string
	device   string
	dtype    string
}

type Config struct {
	Endpoint string
	Token    string
	Debug    bool
	Client   *http.Client
}

func New(cfg *Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Minute,
		}
	}
	return &Client{
		client:   client,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		debug:    cfg.Debug,
	}
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Load asks the server to load the model and remembers it for inference.
func (c *Client) Load(ctx context.Context, model, device, dtype string) error {
	req := &wire.LoadRequest{
		Model:  model,
		Device: device,
		DType:  dtype,
	}
	if _, err := c.do(ctx, "POST", "load", req, nil); err != nil {
		return fmt.Errorf("remote: couldn't load model %s: %w", model, err)
	}
	c.model = model
	c.device = device
	c.dtype = dtype
	return nil
}

// Infer generates audio for the prompt, bounded by maxLength tokens.
func (c *Client) Infer(ctx context.Context, prompt string, maxLength int) (*music.Audio, error) {
	req := &wire.Request{
		Model:  c.model,
		Device: c.device,
		DType:  c.dtype,
		Inputs: prompt,
		ForwardParams: wire.ForwardParams{
			MaxNewTokens: maxLength,
		},
	}
	var resp wire.Result
	if _, err := c.do(ctx, "POST", "generate", req, &resp); err != nil {
		return nil, err
	}
	audio, err := resp.Decode()
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	return audio, nil
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return fmt.Sprintf("%d", e)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var s errStatusCode
	if errors.As(err, &s) {
		return int(s)
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) ([]byte, error) {
	var body []byte
	var reqBody io.Reader
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("remote: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	logBody := string(body)
	if len(logBody) > 200 {
		logBody = logBody[:200] + "..."
	}
	c.log("remote: do %s %s %s", method, path, logBody)

	u := fmt.Sprintf("%s/%s", c.endpoint, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("remote: couldn't create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	if c.token != "" {
		req.Header.Set("authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: couldn't read response body: %w", err)
	}
	logResp := string(respBody)
	if len(logResp) > 200 {
		logResp = logResp[:200] + "..."
	}
	c.log("remote: response %s %s %d %s", method, path, resp.StatusCode, logResp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return nil, fmt.Errorf("remote: %s %s returned (%s): %w", method, u, errMessage, errStatusCode(resp.StatusCode))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("remote: couldn't unmarshal response body (%T): %w", out, err)
		}
	}
	return respBody, nil
}
