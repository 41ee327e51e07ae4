package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/ocr-robustness/internal/detection"
	"github.com/ironsheep/ocr-robustness/internal/ocr"
	"github.com/ironsheep/ocr-robustness/internal/perturb"
	"github.com/ironsheep/ocr-robustness/internal/pipeline"
	"github.com/ironsheep/ocr-robustness/internal/store"
)

type testEnv struct {
	server   *Server
	sources  *store.MemoryObjects
	variants *store.MemoryObjects
	records  *store.MemoryRecords
}

// encodeTestImage returns a PNG with dark vertical stripes on grey.
func encodeTestImage(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{200, 200, 200, 255}
			if x%5 == 0 {
				c = color.RGBA{10, 10, 10, 255}
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		sources:  store.NewMemoryObjects("sources"),
		variants: store.NewMemoryObjects("variants"),
		records:  store.NewMemoryRecords(),
	}
	p, err := pipeline.New(pipeline.Deps{
		Sources:       env.sources,
		Variants:      env.variants,
		Metrics:       store.NewMemoryObjects("metrics"),
		Records:       env.records,
		Preprocessing: env.records,
		OCR:           ocr.NewStatic("stop"),
		SourceBucket:  "sources",
		VariantBucket: "variants",
		Engine:        perturb.NewEngine(perturb.Options{Rand: perturb.SeededRand(7)}),
		GroundTruth:   detection.GroundTruth{"33.jpg": "STOP"},
		Suffix:        perturb.FixedSuffix("abcd1234"),
	})
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	env.server = New(p, "test", nil)
	return env
}

// callTool issues a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolResult decodes the JSON text content of a successful tool response.
func toolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v (%v)", resp.Error.Message, resp.Error.Data)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content should hold one item, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode tool result: %v\n%s", err, text)
	}
}

func TestHandleToolsCall_PerturbImage(t *testing.T) {
	env := newTestEnv(t)
	if err := env.sources.Put(context.Background(), "33.jpg", encodeTestImage(t, 40, 30)); err != nil {
		t.Fatal(err)
	}

	resp := callTool(t, env.server, "perturb_image", map[string]interface{}{"key": "33.jpg", "run_id": "r1"})

	var got struct {
		Record struct {
			ID    string            `json:"id"`
			RunID string            `json:"run_id"`
			Paths map[string]string `json:"paths"`
		} `json:"record"`
		VariantKeys []string `json:"variant_keys"`
	}
	toolResult(t, resp, &got)

	if got.Record.ID != "33_abcd1234" {
		t.Errorf("record id: got %s, want 33_abcd1234", got.Record.ID)
	}
	if got.Record.RunID != "r1" {
		t.Errorf("run id: got %s, want r1", got.Record.RunID)
	}
	if len(got.VariantKeys) != 18 {
		t.Errorf("variant keys: got %d, want 18", len(got.VariantKeys))
	}
	if env.variants.Len() != 18 {
		t.Errorf("stored variants: got %d, want 18", env.variants.Len())
	}
}

func TestHandleToolsCall_DetectText(t *testing.T) {
	env := newTestEnv(t)
	key := "33_abcd1234/blurred_9.jpg"
	if err := env.variants.Put(context.Background(), key, []byte("jpeg")); err != nil {
		t.Fatal(err)
	}

	resp := callTool(t, env.server, "detect_text", map[string]interface{}{"bucket": "variants", "key": key})

	var got struct {
		ID        string `json:"id"`
		ImageID   string `json:"image_id"`
		Operation string `json:"operation"`
		Detected  bool   `json:"detected"`
		Tier      string `json:"tier"`
	}
	toolResult(t, resp, &got)

	if got.ID != key || got.ImageID != "33_abcd1234" || got.Operation != "blurred_9.jpg" {
		t.Errorf("unexpected record identity: %+v", got)
	}
	if !got.Detected || got.Tier != string(detection.TierExact) {
		t.Errorf("expected exact detection, got %+v", got)
	}
}

func TestHandleToolsCall_BucketMismatch(t *testing.T) {
	env := newTestEnv(t)

	resp := callTool(t, env.server, "detect_text", map[string]interface{}{"bucket": "other", "key": "33_a/scaled_10.jpg"})

	if resp.Error == nil {
		t.Fatal("Expected error for bucket mismatch")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "invalid request") {
		t.Errorf("Error data: got %q", data)
	}
}

func TestHandleToolsCall_EvaluateCorpusAndGather(t *testing.T) {
	env := newTestEnv(t)
	if err := env.sources.Put(context.Background(), "33.jpg", encodeTestImage(t, 40, 30)); err != nil {
		t.Fatal(err)
	}

	resp := callTool(t, env.server, "evaluate_corpus", map[string]interface{}{"gather": true})

	var got struct {
		RunID    string `json:"run_id"`
		Complete bool   `json:"complete"`
		Sources  []struct {
			SourceID string `json:"source_id"`
			Variants int    `json:"variants"`
			Detected int    `json:"detected"`
		} `json:"sources"`
		Metrics struct {
			URL    string                 `json:"url"`
			Report map[string]interface{} `json:"report"`
		} `json:"metrics"`
	}
	toolResult(t, resp, &got)

	if !got.Complete {
		t.Error("expected a complete run")
	}
	if len(got.Sources) != 1 || got.Sources[0].Variants != 18 || got.Sources[0].Detected != 18 {
		t.Fatalf("unexpected sources: %+v", got.Sources)
	}
	if got.Metrics.URL != "mem://metrics/metrics.json" {
		t.Errorf("metrics url: got %s", got.Metrics.URL)
	}
	if got.Metrics.Report["accuracy"] != 100.0 {
		t.Errorf("accuracy: got %v, want 100", got.Metrics.Report["accuracy"])
	}
	if got.Metrics.Report["blurred_17_detected_count"] != 1.0 {
		t.Errorf("blurred_17_detected_count: got %v", got.Metrics.Report["blurred_17_detected_count"])
	}
}

func TestHandleToolsCall_GatherMetrics_IntegrityFault(t *testing.T) {
	env := newTestEnv(t)

	resp := callTool(t, env.server, "gather_metrics", nil)

	if resp.Error == nil {
		t.Fatal("Expected integrity fault for empty store")
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "data integrity fault") {
		t.Errorf("Error data: got %q", data)
	}
}

func TestHandleToolsCall_GroundTruthKey(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		wantLookup string
		wantOp     string
		wantGT     string
	}{
		{"known", "33_abcd1234/noise_5.jpg", "33.jpg", "noise_5", "STOP"},
		{"unknown", "99_abcd1234/brightness_0.25.png", "99.png", "brightness_0.25", ""},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				LookupKey   string  `json:"lookup_key"`
				Operation   string  `json:"operation"`
				GroundTruth *string `json:"ground_truth"`
			}
			toolResult(t, callTool(t, env.server, "ground_truth_key", map[string]interface{}{"key": tt.key}), &got)

			if got.LookupKey != tt.wantLookup {
				t.Errorf("lookup key: got %s, want %s", got.LookupKey, tt.wantLookup)
			}
			if got.Operation != tt.wantOp {
				t.Errorf("operation: got %s, want %s", got.Operation, tt.wantOp)
			}
			if tt.wantGT == "" && got.GroundTruth != nil {
				t.Errorf("ground truth: got %q, want none", *got.GroundTruth)
			}
			if tt.wantGT != "" && (got.GroundTruth == nil || *got.GroundTruth != tt.wantGT) {
				t.Errorf("ground truth: got %v, want %s", got.GroundTruth, tt.wantGT)
			}
		})
	}
}

func TestHandleToolsCall_GroundTruthKey_WithoutPipeline(t *testing.T) {
	s := New(nil, "test", nil)

	var got struct {
		GroundTruth *string `json:"ground_truth"`
	}
	toolResult(t, callTool(t, s, "ground_truth_key", map[string]interface{}{"key": "33_x/scaled_10.jpg"}), &got)

	if got.GroundTruth == nil || *got.GroundTruth != "STOP" {
		t.Errorf("expected default dataset entry for 33.jpg, got %v", got.GroundTruth)
	}
}

func TestHandleToolsCall_ImageInfo(t *testing.T) {
	s := New(nil, "test", nil)
	path := filepath.Join(t.TempDir(), "sample.png")
	if err := os.WriteFile(path, encodeTestImage(t, 25, 10), 0o644); err != nil {
		t.Fatal(err)
	}

	var got struct {
		ID        string  `json:"id"`
		Width     int     `json:"width"`
		Height    int     `json:"height"`
		Lightness float64 `json:"lightness"`
	}
	toolResult(t, callTool(t, s, "image_info", map[string]interface{}{"path": path}), &got)

	if got.ID != "sample.png" || got.Width != 25 || got.Height != 10 {
		t.Errorf("unexpected info: %+v", got)
	}
	if got.Lightness <= 0 || got.Lightness >= 100 {
		t.Errorf("lightness out of range: %v", got.Lightness)
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache length: got %d, want 1", s.cache.Len())
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		args     interface{}
		wantCode int
	}{
		{"unknown tool", "nonexistent_tool", map[string]interface{}{}, -32000},
		{"pipeline tool without pipeline", "gather_metrics", nil, -32000},
		{"missing path", "image_info", map[string]interface{}{}, -32000},
		{"non-existent file", "image_info", map[string]interface{}{"path": "/nonexistent/image.png"}, -32000},
		{"malformed key", "ground_truth_key", map[string]interface{}{"key": "no-folder.jpg"}, -32000},
		{"wrong argument type", "ground_truth_key", map[string]interface{}{"key": 12}, -32000},
	}

	s := New(nil, "test", nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, tt.tool, tt.args)
			if resp.Error == nil {
				t.Fatal("Expected error response")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("Error code: got %d, want %d", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(nil, "test", nil)
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`{invalid json}`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}
