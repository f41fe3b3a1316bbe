package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"

	"github.com/igolaizola/musicgen/pkg/model/wire"
	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/mattn/go-shellwords"
)

type Config struct {
	Command string
	Model   string
	Device  string
	DType   string
	Debug   bool
}

// Client runs a local command per inference. The command receives a JSON
// request on stdin and writes a JSON result to stdout.
type Client struct {
	cmd    []string
	model  string
	device string
	dtype  string
	debug  bool
}

func New(cfg *Config) (*Client, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("script: couldn't parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("script: command is empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("script: couldn't find %s: %w", args[0], err)
	}
	return &Client{
		cmd:    args,
		model:  cfg.Model,
		device: cfg.Device,
		dtype:  cfg.DType,
		debug:  cfg.Debug,
	}, nil
}

func (c *Client) Infer(ctx context.Context, prompt string, maxLength int) (*music.Audio, error) {
	data, err := json.Marshal(&wire.Request{
		Model:  c.model,
		Device: c.device,
		DType:  c.dtype,
		Inputs: prompt,
		ForwardParams: wire.ForwardParams{
			MaxNewTokens: maxLength,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("script: couldn't marshal request: %w", err)
	}
	if c.debug {
		log.Printf("script: run %v %s\n", c.cmd, string(data))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.cmd[0], c.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("script: command failed: %w: %s", err, stderr.String())
	}

	var resp wire.Result
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("script: couldn't decode response: %w", err)
	}
	audio, err := resp.Decode()
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	return audio, nil
}
