package run

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/pocket/api"
	"github.com/agentic-research/pocket/internal/console"
	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/metrics"
)

type sink struct{ entries []console.Entry }

func (s *sink) emit(e console.Entry) { s.entries = append(s.entries, e) }

func (s *sink) kinds() []console.Kind {
	out := make([]console.Kind, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Kind
	}
	return out
}

func (s *sink) texts() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Text
	}
	return out
}

// countingStrategy counts calls and always succeeds.
type countingStrategy struct{ calls int32 }

func (c *countingStrategy) Run(context.Context, string, Emit) Result {
	atomic.AddInt32(&c.calls, 1)
	return Result{Success: true}
}

func TestDispatcher_UnsupportedLanguage(t *testing.T) {
	js, php := &countingStrategy{}, &countingStrategy{}
	m := metrics.New()
	d := NewDispatcher(js, php, WithMetrics(m))

	for _, code := range []string{"", "fn main() {}", "console.log(1)"} {
		var s sink
		res := d.Run(context.Background(), code, lang.Rust, s.emit)
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, ErrUnsupported)
		assert.Equal(t, "Running rust code is not supported yet.", res.Error)
		assert.Equal(t, []console.Kind{console.Error}, s.kinds())
	}
	assert.Zero(t, atomic.LoadInt32(&js.calls))
	assert.Zero(t, atomic.LoadInt32(&php.calls))
}

func TestDispatcher_MissingStrategyIsUnsupported(t *testing.T) {
	d := NewDispatcher(nil, nil)
	res := d.Run(context.Background(), "<?php", lang.PHP, nil)
	assert.ErrorIs(t, res.Err, ErrUnsupported)

	res = d.Run(context.Background(), "x", lang.None, nil)
	assert.Equal(t, "Running plaintext code is not supported yet.", res.Error)
}

func TestDispatcher_Routes(t *testing.T) {
	js, php := &countingStrategy{}, &countingStrategy{}
	d := NewDispatcher(js, php)

	assert.True(t, d.Run(context.Background(), "", lang.JavaScript, nil).Success)
	assert.True(t, d.Run(context.Background(), "", lang.PHP, nil).Success)
	assert.EqualValues(t, 1, js.calls)
	assert.EqualValues(t, 1, php.calls)
}

func TestLocal_ConsoleLog(t *testing.T) {
	var s sink
	res := NewLocal(time.Second, 0).Run(context.Background(), "console.log(1+1)", s.emit)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []console.Kind{console.Log}, s.kinds())
	assert.Equal(t, []string{"2"}, s.texts())
	assert.Equal(t, "2", res.Output)
}

func TestLocal_CapturesAllMethodsInOrder(t *testing.T) {
	var s sink
	code := `
console.info("start");
console.log("a", 1, true, null, undefined);
console.warn({x: 1});
console.error([1, 2]);
console.log(function named() {});
`
	res := NewLocal(time.Second, 0).Run(context.Background(), code, s.emit)
	require.True(t, res.Success, res.Error)

	assert.Equal(t, []console.Kind{console.Info, console.Log, console.Warn, console.Error, console.Log}, s.kinds())
	assert.Equal(t, []string{
		"start",
		"a 1 true null undefined",
		"{\n  \"x\": 1\n}",
		"[\n  1,\n  2\n]",
		"[Function: named]",
	}, s.texts())
	assert.Contains(t, res.Output, "Info: start")
	assert.Contains(t, res.Output, "Warning: {")
}

func TestLocal_ReturnValueIsResult(t *testing.T) {
	var s sink
	res := NewLocal(time.Second, 0).Run(context.Background(), "const x = 21;\nreturn x * 2", s.emit)
	require.True(t, res.Success)
	assert.Equal(t, []console.Kind{console.Result}, s.kinds())
	assert.Equal(t, []string{"42"}, s.texts())
	assert.Equal(t, "=> 42", res.Output)
}

func TestLocal_ThrownErrorIsSingleEntry(t *testing.T) {
	var s sink
	res := NewLocal(time.Second, 0).Run(context.Background(), `console.log("before"); throw new Error("boom")`, s.emit)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrRuntime)
	assert.Equal(t, "boom", res.Error)
	assert.Equal(t, []console.Kind{console.Log, console.Error}, s.kinds())
	assert.Equal(t, "boom", s.entries[1].Text)
}

func TestLocal_ThrownNonError(t *testing.T) {
	var s sink
	res := NewLocal(time.Second, 0).Run(context.Background(), `throw "plain"`, s.emit)
	assert.False(t, res.Success)
	assert.Equal(t, "plain", res.Error)
}

func TestLocal_SyntaxError(t *testing.T) {
	var s sink
	res := NewLocal(time.Second, 0).Run(context.Background(), `console.log(`, s.emit)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrCompile)
	assert.Len(t, s.entries, 1)
}

func TestLocal_Timeout(t *testing.T) {
	var s sink
	res := NewLocal(50*time.Millisecond, 0).Run(context.Background(), `while (true) {}`, s.emit)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Equal(t, "Execution timed out after 50ms", res.Error)
	assert.Equal(t, []console.Kind{console.Error}, s.kinds())
}

// elapsedIn parses the duration out of a timeout message.
func elapsedIn(t *testing.T, msg string) time.Duration {
	t.Helper()
	rest, ok := strings.CutPrefix(msg, "Execution timed out after ")
	require.True(t, ok, msg)
	d, err := time.ParseDuration(rest)
	require.NoError(t, err)
	return d
}

func TestLocal_CallerDeadlineReportsElapsed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := NewLocal(time.Minute, 0).Run(ctx, `while (true) {}`, func(console.Entry) {})

	assert.ErrorIs(t, res.Err, ErrTimeout)
	d := elapsedIn(t, res.Error)
	assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	assert.Less(t, d, time.Minute)
}

func TestLocal_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewLocal(0, 0).Run(ctx, `while (true) {}`, func(console.Entry) {})
	assert.ErrorIs(t, res.Err, ErrCanceled)
}

func TestLocal_StackLimit(t *testing.T) {
	var s sink
	res := NewLocal(time.Second, 64).Run(context.Background(), `function f() { return f() } f()`, s.emit)
	assert.False(t, res.Success)
	assert.Len(t, s.entries, 1)
}

func TestLocal_NoHostAccess(t *testing.T) {
	var s sink
	res := NewLocal(time.Second, 0).Run(context.Background(), `console.log(typeof require, typeof process)`, s.emit)
	require.True(t, res.Success)
	assert.Equal(t, []string{"undefined undefined"}, s.texts())
}

func piston(t *testing.T, status int, reply any) (*httptest.Server, *api.ExecuteRequest) {
	t.Helper()
	got := &api.ExecuteRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, got))
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRemote_StdoutLines(t *testing.T) {
	srv, got := piston(t, http.StatusOK, map[string]any{
		"run": map[string]any{"stdout": "A\nB\n", "stderr": ""},
	})

	var s sink
	res := NewPHP(srv.URL, time.Second).Run(context.Background(), "<?php echo \"A\\nB\\n\";", s.emit)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "A\nB\n", res.Output)
	assert.Equal(t, []console.Kind{console.Log, console.Log}, s.kinds())
	assert.Equal(t, []string{"A", "B"}, s.texts())

	assert.Equal(t, "php", got.Language)
	assert.Equal(t, "*", got.Version)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "main.php", got.Files[0].Name)
	assert.Equal(t, "<?php echo \"A\\nB\\n\";", got.Files[0].Content)
}

func TestRemote_RunStderr(t *testing.T) {
	srv, _ := piston(t, http.StatusOK, map[string]any{
		"run": map[string]any{"stdout": "partial\n", "stderr": "PHP Warning: oops"},
	})

	var s sink
	res := NewPHP(srv.URL, time.Second).Run(context.Background(), "<?php", s.emit)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrRuntime)
	assert.Equal(t, "partial\n", res.Output)
	assert.Equal(t, "PHP Warning: oops", res.Error)
	assert.Equal(t, []console.Kind{console.Log, console.Error}, s.kinds())
}

func TestRemote_CompileErrorWins(t *testing.T) {
	srv, _ := piston(t, http.StatusOK, map[string]any{
		"compile": map[string]any{"stderr": "syntax error", "output": "syntax error"},
		"run":     map[string]any{"stdout": "never", "stderr": ""},
	})

	var s sink
	res := NewPHP(srv.URL, time.Second).Run(context.Background(), "<?php", s.emit)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrCompile)
	assert.Equal(t, "syntax error", res.Error)
	assert.Equal(t, []string{"syntax error"}, s.texts())
}

func TestRemote_HTTPFailure(t *testing.T) {
	srv, _ := piston(t, http.StatusBadRequest, map[string]any{"message": "php-* runtime is unknown"})

	var s sink
	res := NewPHP(srv.URL, time.Second).Run(context.Background(), "<?php", s.emit)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrTransport)
	assert.Equal(t, "Failed to execute: API request failed: 400 Bad Request: php-* runtime is unknown", res.Error)
	assert.Equal(t, []console.Kind{console.Error}, s.kinds())
}

func TestRemote_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var s sink
	res := NewPHP(url, time.Second).Run(context.Background(), "<?php", s.emit)
	assert.ErrorIs(t, res.Err, ErrTransport)
	assert.Len(t, s.entries, 1)
}

func TestRemote_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}))
	defer srv.Close()

	res := NewPHP(srv.URL, time.Second).Run(context.Background(), "<?php", func(console.Entry) {})
	assert.ErrorIs(t, res.Err, ErrTransport)
}

func TestRemote_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	var s sink
	res := NewPHP(srv.URL, 50*time.Millisecond).Run(context.Background(), "<?php", s.emit)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Equal(t, "Execution timed out after 50ms", res.Error)
	assert.Equal(t, []console.Kind{console.Error}, s.kinds())
}

func TestRemote_CallerDeadlineReportsElapsed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := NewPHP(srv.URL, time.Minute).Run(ctx, "<?php", func(console.Entry) {})

	assert.ErrorIs(t, res.Err, ErrTimeout)
	d := elapsedIn(t, res.Error)
	assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	assert.Less(t, d, time.Minute)
}

func TestDispatcher_RecordsMetricsThroughRealStrategies(t *testing.T) {
	srv, _ := piston(t, http.StatusOK, map[string]any{"run": map[string]any{"stdout": "ok\n"}})
	d := NewDispatcher(NewLocal(time.Second, 0), NewPHP(srv.URL, time.Second), WithMetrics(metrics.New()))

	var c console.Console
	emit := c.Append
	assert.True(t, d.Run(context.Background(), "console.log('js')", lang.JavaScript, emit).Success)
	assert.True(t, d.Run(context.Background(), "<?php echo 'ok';", lang.PHP, emit).Success)

	var texts []string
	for _, e := range c.Entries() {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"js", "ok"}, texts)
}
