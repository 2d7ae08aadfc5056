package mcptool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/dasite/imagediff"
	"github.com/hazyhaar/dasite/snapshot"
)

var testImpl = &mcp.Implementation{Name: "dasite-test", Version: "0.1.0"}

func testPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func session(t *testing.T, store *snapshot.Store, capture CaptureFunc) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testImpl, nil)
	New(store, imagediff.Options{}, capture, quietLogger()).Register(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	sess, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func callTool(t *testing.T, sess *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := sess.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		if tc, ok := result.Content[0].(*mcp.TextContent); ok {
			t.Fatalf("CallTool(%s) tool error: %s", name, tc.Text)
		}
		t.Fatalf("CallTool(%s) tool error", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_Targets(t *testing.T) {
	store := snapshot.New(t.TempDir(), quietLogger())
	store.WriteCurrent("example_com", testPNG(t, color.RGBA{255, 255, 255, 255}))

	sess := session(t, store, nil)
	text := callTool(t, sess, "dasite_targets", map[string]any{})

	var resp struct {
		Targets []struct {
			Target      string `json:"target"`
			HasBaseline bool   `json:"has_baseline"`
		} `json:"targets"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(resp.Targets))
	}
	if resp.Targets[0].Target != "example_com" || resp.Targets[0].HasBaseline {
		t.Errorf("target = %+v", resp.Targets[0])
	}
}

func TestMCP_CompareAndAccept(t *testing.T) {
	store := snapshot.New(t.TempDir(), quietLogger())
	store.WriteCurrent("example_com", testPNG(t, color.RGBA{255, 255, 255, 255}))

	sess := session(t, store, nil)

	// First compare bootstraps the baseline.
	text := callTool(t, sess, "dasite_compare", map[string]any{})
	var resp struct {
		Targets []struct {
			Target          string  `json:"target"`
			BaselineCreated bool    `json:"baseline_created"`
			Changed         bool    `json:"changed"`
			DiffPercentage  float64 `json:"diff_percentage"`
		} `json:"targets"`
		MaxDiff float64 `json:"max_diff"`
		Passed  bool    `json:"passed"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Targets[0].BaselineCreated || !resp.Passed {
		t.Errorf("bootstrap compare = %+v", resp)
	}

	// Repaint the page, compare again: changed, fails under zero threshold.
	store.WriteCurrent("example_com", testPNG(t, color.RGBA{0, 0, 0, 255}))
	text = callTool(t, sess, "dasite_compare", map[string]any{})
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Targets[0].Changed || resp.Passed {
		t.Errorf("changed compare = %+v", resp)
	}
	if resp.MaxDiff != 100 {
		t.Errorf("max_diff = %.4f, want 100", resp.MaxDiff)
	}

	// A generous threshold makes the same diff pass.
	text = callTool(t, sess, "dasite_compare", map[string]any{"threshold": 100})
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Passed {
		t.Error("diff exactly at threshold must pass")
	}

	// Accept the change; the next compare is clean.
	text = callTool(t, sess, "dasite_accept", map[string]any{})
	var accepted struct {
		Accepted int `json:"accepted"`
	}
	if err := json.Unmarshal([]byte(text), &accepted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if accepted.Accepted != 1 {
		t.Errorf("accepted = %d, want 1", accepted.Accepted)
	}

	text = callTool(t, sess, "dasite_compare", map[string]any{})
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Targets[0].Changed {
		t.Error("compare after accept must be unchanged")
	}
}

func TestMCP_CompareErrorFails(t *testing.T) {
	store := snapshot.New(t.TempDir(), quietLogger())
	store.WriteCurrent("example_com", testPNG(t, color.RGBA{255, 255, 255, 255}))

	sess := session(t, store, nil)
	callTool(t, sess, "dasite_compare", map[string]any{}) // bootstrap

	// Corrupt the baseline: the compare must finish but report failure,
	// even under a generous threshold.
	if err := os.WriteFile(store.BaselinePath("example_com"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	text := callTool(t, sess, "dasite_compare", map[string]any{"threshold": 100})

	var resp struct {
		Targets []struct {
			Error string `json:"error"`
		} `json:"targets"`
		Errors int  `json:"errors"`
		Passed bool `json:"passed"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Passed {
		t.Error("compare with an unreadable baseline must not pass")
	}
	if resp.Errors != 1 || resp.Targets[0].Error == "" {
		t.Errorf("errors = %d, target error = %q; want the failure surfaced", resp.Errors, resp.Targets[0].Error)
	}
}

func TestMCP_Capture(t *testing.T) {
	store := snapshot.New(t.TempDir(), quietLogger())

	capture := func(_ context.Context, url string) (string, error) {
		id, err := snapshot.Identity(url)
		if err != nil {
			return "", err
		}
		if _, err := store.WriteCurrent(id, testPNG(t, color.RGBA{255, 255, 255, 255})); err != nil {
			return "", err
		}
		return id, nil
	}

	sess := session(t, store, capture)
	text := callTool(t, sess, "dasite_capture", map[string]any{"url": "https://example.com/about"})

	var resp struct {
		Target string `json:"target"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Target != "example_com_about" {
		t.Errorf("target = %q, want example_com_about", resp.Target)
	}
}

func TestMCP_CaptureErrorIsToolError(t *testing.T) {
	store := snapshot.New(t.TempDir(), quietLogger())
	capture := func(context.Context, string) (string, error) {
		return "", fmt.Errorf("browser unavailable")
	}

	sess := session(t, store, capture)
	result, err := sess.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "dasite_capture",
		Arguments: map[string]any{"url": "https://example.com"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("capture failure must surface as a tool error")
	}
}

func TestMCP_CaptureNotRegisteredWithoutFunc(t *testing.T) {
	store := snapshot.New(t.TempDir(), quietLogger())
	sess := session(t, store, nil)

	_, err := sess.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "dasite_capture",
		Arguments: map[string]any{"url": "https://example.com"},
	})
	if err == nil {
		t.Fatal("dasite_capture must not exist when no capture func is wired")
	}
}
