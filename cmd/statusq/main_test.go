package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aegistools/statusq/internal/testutil"
	"github.com/aegistools/statusq/pkg/config"
)

func testConfig(t *testing.T, endpoint string, input string) config.Config {
	t.Helper()
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "ids.txt")
	if err := os.WriteFile(inputPath, []byte(input), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfg := config.Default()
	cfg.Input = inputPath
	cfg.Output = filepath.Join(dir, "out.json")
	cfg.ErrorOutput = filepath.Join(dir, "err.json")
	cfg.Endpoint = endpoint
	cfg.StatusPath = ""
	cfg.Workers = 4
	return cfg
}

func TestRunBatch_Scenario(t *testing.T) {
	mock := testutil.NewMockStatusAPI()
	defer mock.Close()
	mock.SetResponse("10002", testutil.NewActiveResponse())
	mock.SetResponse("1000000000000000000000000000000000", testutil.NewErrorResponse(400))

	input := "10002\n# test\n\n1000000000000000000000000000000000\n"
	cfg := testConfig(t, mock.URL(), input)

	var stdout bytes.Buffer
	if err := runBatch(context.Background(), cfg, &stdout); err != nil {
		t.Fatalf("runBatch failed: %v", err)
	}

	out, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("read success document: %v", err)
	}
	var successes []map[string]any
	if err := json.Unmarshal(out, &successes); err != nil {
		t.Fatalf("success document not valid JSON: %v", err)
	}
	if len(successes) != 1 {
		t.Fatalf("successes = %d, want 1", len(successes))
	}
	if !strings.Contains(string(out), `"easy_id": 10002`) {
		t.Errorf("success record missing numeric easy_id:\n%s", out)
	}
	if successes[0]["account_status"] != "active" {
		t.Errorf("payload not merged into success record: %v", successes[0])
	}

	errOut, err := os.ReadFile(cfg.ErrorOutput)
	if err != nil {
		t.Fatalf("read error document: %v", err)
	}
	var failures []map[string]any
	if err := json.Unmarshal(errOut, &failures); err != nil {
		t.Fatalf("error document not valid JSON: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0]["error"] != "status code=400" {
		t.Errorf("error = %v, want status code=400", failures[0]["error"])
	}
	if !strings.Contains(string(errOut), `"easy_id": 1000000000000000000000000000000000`) {
		t.Errorf("big easy_id truncated or quoted:\n%s", errOut)
	}
}

func TestRunBatch_IndividualFailuresExitZero(t *testing.T) {
	mock := testutil.NewMockStatusAPI()
	defer mock.Close()
	mock.SetFallback(testutil.NewErrorResponse(500))

	cfg := testConfig(t, mock.URL(), "1\n2\n3\n")

	// Every identifier fails, but the drain completed: no error.
	if err := runBatch(context.Background(), cfg, &bytes.Buffer{}); err != nil {
		t.Fatalf("runBatch should succeed when only identifiers fail: %v", err)
	}

	errOut, _ := os.ReadFile(cfg.ErrorOutput)
	var failures []map[string]any
	if err := json.Unmarshal(errOut, &failures); err != nil {
		t.Fatalf("error document not valid JSON: %v", err)
	}
	if len(failures) != 3 {
		t.Errorf("failures = %d, want 3", len(failures))
	}
}

func TestRunBatch_MissingInputIsFatal(t *testing.T) {
	mock := testutil.NewMockStatusAPI()
	defer mock.Close()

	cfg := testConfig(t, mock.URL(), "1\n")
	cfg.Input = filepath.Join(t.TempDir(), "missing.txt")

	if err := runBatch(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected setup error for missing input file")
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("no work item should be dispatched on setup failure, got %d requests", mock.GetRequestCount())
	}
}

func TestRunBatch_UnreachableEndpointIsFatal(t *testing.T) {
	mock := testutil.NewMockStatusAPI()
	url := mock.URL()
	mock.Close() // endpoint down before the pool starts

	cfg := testConfig(t, url, "1\n2\n")

	if err := runBatch(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected setup error for unreachable endpoint")
	}
}

func TestRunBatch_IdempotentOutputs(t *testing.T) {
	mock := testutil.NewMockStatusAPI()
	defer mock.Close()
	mock.SetResponse("10002", testutil.NewActiveResponse())
	mock.SetResponse("77", testutil.NewErrorResponse(403))

	cfg := testConfig(t, mock.URL(), "10002\n77\nbogus\n")

	if err := runBatch(context.Background(), cfg, &bytes.Buffer{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first, _ := os.ReadFile(cfg.Output)
	firstErr, _ := os.ReadFile(cfg.ErrorOutput)

	if err := runBatch(context.Background(), cfg, &bytes.Buffer{}); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second, _ := os.ReadFile(cfg.Output)
	secondErr, _ := os.ReadFile(cfg.ErrorOutput)

	if !bytes.Equal(first, second) || !bytes.Equal(firstErr, secondErr) {
		t.Error("re-running with identical input did not produce byte-identical documents")
	}
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	root := newRootCmd(&stdout)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(stdout.String(), version) {
		t.Errorf("version output %q missing %q", stdout.String(), version)
	}
}

func TestRootCommand_RequiresInput(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error when --input is missing")
	}
}
