package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/logging"
)

// ExecService runs the external compiler as a subprocess. Each call spawns
// one invocation that reads a single JSON request from stdin and writes a
// single JSON response to stdout. Stderr is reserved for the compiler's own
// logging and is surfaced only on failure.
type ExecService struct {
	command string
	args    []string
	options map[string]interface{}
	timeout time.Duration
	logger  logging.Logger
}

// ExecOption configures an ExecService.
type ExecOption func(*ExecService)

// WithTimeout bounds each compiler invocation.
func WithTimeout(d time.Duration) ExecOption {
	return func(s *ExecService) {
		s.timeout = d
	}
}

// WithOptions sets the pass-through option map forwarded on every request.
func WithOptions(opts map[string]interface{}) ExecOption {
	return func(s *ExecService) {
		s.options = opts
	}
}

// NewExecService validates the command and arguments and returns a service
// that shells out to them.
func NewExecService(command string, args []string, logger logging.Logger, opts ...ExecOption) (*ExecService, error) {
	if err := validateCommand(command); err != nil {
		return nil, fmt.Errorf("compiler command rejected: %w", err)
	}
	for _, arg := range args {
		if err := validateArgument(arg); err != nil {
			return nil, fmt.Errorf("compiler argument rejected: %w", err)
		}
	}

	s := &ExecService{
		command: command,
		args:    args,
		timeout: 30 * time.Second,
		logger:  logger.WithComponent("compiler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// request is the wire envelope sent to the compiler process.
type request struct {
	Action   string          `json:"action"`
	Filename string          `json:"filename"`
	Payload  json.RawMessage `json:"payload"`
}

// response is the wire envelope read back from the compiler process.
type response struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	Diagnostics []errors.Diagnostic `json:"diagnostics,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Parse implements Service.
func (s *ExecService) Parse(ctx context.Context, source []byte, filename string) (*ParseResult, error) {
	payload, err := json.Marshal(struct {
		Source   string `json:"source"`
		Filename string `json:"filename"`
	}{Source: string(source), Filename: filename})
	if err != nil {
		return nil, fmt.Errorf("encoding parse request: %w", err)
	}

	resp, err := s.invoke(ctx, "parse", filename, payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, errors.NewParseError(filename, resp.Diagnostics, fmt.Errorf("%s", resp.Error))
	}

	var result ParseResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decoding parse result for %s: %w", filename, err)
	}
	if result.Descriptor == nil {
		return nil, errors.NewParseError(filename, resp.Diagnostics, fmt.Errorf("compiler returned no descriptor"))
	}
	result.Descriptor.Filename = filename
	result.Diagnostics = append(result.Diagnostics, resp.Diagnostics...)
	return &result, nil
}

// CompileTemplate implements Service.
func (s *ExecService) CompileTemplate(ctx context.Context, req TemplateRequest) (*CompileResult, error) {
	if req.Options == nil {
		req.Options = s.options
	}
	return s.compile(ctx, "compile-template", req.Filename, req)
}

// CompileStyle implements Service.
func (s *ExecService) CompileStyle(ctx context.Context, req StyleRequest) (*CompileResult, error) {
	if req.Options == nil {
		req.Options = s.options
	}
	return s.compile(ctx, "compile-style", req.Filename, req)
}

func (s *ExecService) compile(ctx context.Context, action, filename string, body interface{}) (*CompileResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", action, err)
	}

	resp, err := s.invoke(ctx, action, filename, payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, errors.NewParseError(filename, resp.Diagnostics, fmt.Errorf("%s", resp.Error))
	}

	var result CompileResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decoding %s result for %s: %w", action, filename, err)
	}
	result.Diagnostics = append(result.Diagnostics, resp.Diagnostics...)
	return &result, nil
}

func (s *ExecService) invoke(ctx context.Context, action, filename string, payload json.RawMessage) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := request{Action: action, Filename: filename, Payload: payload}
	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding compiler request: %w", err)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("compiler %s timed out after %v for %s", action, s.timeout, filename)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("compiler %s failed for %s: %s", action, filename, detail)
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("compiler produced invalid output for %s: %w", filename, err)
	}

	s.logger.Debug(ctx, "compiler invocation complete",
		"action", action,
		"filename", filename,
		"duration", time.Since(start).String(),
		"ok", resp.OK)
	return &resp, nil
}
