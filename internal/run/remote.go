package run

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/pocket/api"
	"github.com/agentic-research/pocket/internal/console"
)

// maxResponseBytes bounds how much of a service reply is read.
const maxResponseBytes = 4 << 20

var (
	compileStderr = jp.MustParseString("$.compile.stderr")
	compileOutput = jp.MustParseString("$.compile.output")
	runStdout     = jp.MustParseString("$.run.stdout")
	runStderr     = jp.MustParseString("$.run.stderr")
	apiMessage    = jp.MustParseString("$.message")
)

// Remote runs code on a Piston-compatible execution service.
type Remote struct {
	Endpoint string
	Language string // service language name, e.g. "php"
	Version  string // "*" selects the latest
	FileName string
	Timeout  time.Duration
	Client   *http.Client
}

// NewPHP returns a Remote that runs PHP on endpoint.
func NewPHP(endpoint string, timeout time.Duration) *Remote {
	return &Remote{
		Endpoint: endpoint,
		Language: "php",
		Version:  "*",
		FileName: "main.php",
		Timeout:  timeout,
		Client:   http.DefaultClient,
	}
}

func (r *Remote) Run(ctx context.Context, code string, emit Emit) (res Result) {
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	fail := func(msg string, err error, output string) Result {
		emit(console.NewEntry(console.Error, msg))
		return Result{Output: output, Error: msg, Err: err}
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	raw, err := r.post(runCtx, code)
	if err != nil {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return fail(expiredMessage(ctx, r.Timeout, start), ErrTimeout, "")
		case errors.Is(runCtx.Err(), context.Canceled):
			return fail("Execution canceled", ErrCanceled, "")
		}
		return fail("Failed to execute: "+err.Error(), ErrTransport, "")
	}

	data, err := oj.Parse(raw)
	if err != nil {
		return fail(fmt.Sprintf("Failed to execute: invalid response: %v", err), ErrTransport, "")
	}

	if msg := first(compileStderr, data); msg != "" {
		return fail(msg, ErrCompile, first(compileOutput, data))
	}

	stdout := first(runStdout, data)
	for _, line := range strings.Split(stdout, "\n") {
		if line != "" {
			emit(console.NewEntry(console.Log, line))
		}
	}
	if stderr := first(runStderr, data); stderr != "" {
		return fail(stderr, ErrRuntime, stdout)
	}
	return Result{Success: true, Output: stdout}
}

// post sends the request and returns the body of a 2xx reply.
func (r *Remote) post(ctx context.Context, code string) ([]byte, error) {
	body, err := json.Marshal(api.ExecuteRequest{
		Language: r.Language,
		Version:  r.Version,
		Files:    []api.ExecuteFile{{Name: r.FileName, Content: code}},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() // best-effort

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := "API request failed: " + resp.Status
		if data, perr := oj.Parse(raw); perr == nil {
			if m := first(apiMessage, data); m != "" {
				msg += ": " + m
			}
		}
		return nil, errors.New(msg)
	}
	return raw, nil
}

// first returns the string at path x in data, or "".
func first(x jp.Expr, data any) string {
	s, _ := x.First(data).(string)
	return s
}
