package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/ocr-robustness/internal/detection"
	"github.com/ironsheep/ocr-robustness/internal/imaging"
	"github.com/ironsheep/ocr-robustness/internal/metrics"
	"github.com/ironsheep/ocr-robustness/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "perturb_image", "detect_text").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Pipeline tools need a configured pipeline; helpers work without one.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "ground_truth_key":
		return s.handleGroundTruthKey(args)
	case "image_info":
		return s.handleImageInfo(args)
	case "perturb_image", "detect_text", "gather_metrics", "evaluate_corpus":
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	if s.pipeline == nil {
		return nil, fmt.Errorf("tool %s requires a configured pipeline", name)
	}
	switch name {
	case "perturb_image":
		return s.handlePerturbImage(ctx, args)
	case "detect_text":
		return s.handleDetectText(ctx, args)
	case "gather_metrics":
		return s.handleGatherMetrics(ctx)
	default:
		return s.handleEvaluateCorpus(ctx, args)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments; absent arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Pipeline Handlers ===

func (s *Server) handlePerturbImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pipeline.PreprocessRequest
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.pipeline.Preprocess(ctx, a)
}

func (s *Server) handleDetectText(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pipeline.DetectRequest
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.pipeline.Detect(ctx, a)
}

type gatherMetricsResult struct {
	URL    string          `json:"url"`
	Report *metrics.Report `json:"report"`
}

func (s *Server) handleGatherMetrics(ctx context.Context) (interface{}, error) {
	report, url, err := s.pipeline.GatherMetrics(ctx)
	if err != nil {
		return nil, err
	}
	return gatherMetricsResult{URL: url, Report: report}, nil
}

type evaluateCorpusArgs struct {
	Gather bool `json:"gather"`
}

type evaluateCorpusResult struct {
	*pipeline.CorpusResult
	Metrics *gatherMetricsResult `json:"metrics,omitempty"`
}

func (s *Server) handleEvaluateCorpus(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a evaluateCorpusArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := s.pipeline.EvaluateCorpus(ctx)
	if err != nil {
		return nil, err
	}
	out := evaluateCorpusResult{CorpusResult: res}
	if a.Gather {
		report, url, err := s.pipeline.GatherMetrics(ctx)
		if err != nil {
			return nil, err
		}
		out.Metrics = &gatherMetricsResult{URL: url, Report: report}
	}
	return out, nil
}

// === Helper Handlers ===

type groundTruthKeyArgs struct {
	Key string `json:"key"`
}

type groundTruthKeyResult struct {
	Key         string  `json:"key"`
	LookupKey   string  `json:"lookup_key"`
	Operation   string  `json:"operation"`
	GroundTruth *string `json:"ground_truth"`
}

func (s *Server) handleGroundTruthKey(args json.RawMessage) (interface{}, error) {
	var a groundTruthKeyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	_, descriptor, ok := detection.SplitObjectKey(a.Key)
	if !ok {
		return nil, fmt.Errorf("key %q must have the form folder/descriptor", a.Key)
	}

	res := groundTruthKeyResult{
		Key:       a.Key,
		LookupKey: detection.GroundTruthKey(a.Key),
		Operation: detection.OperationKey(descriptor),
	}
	gt := detection.DefaultGroundTruth()
	if s.pipeline != nil {
		gt = s.pipeline.GroundTruth()
	}
	res.GroundTruth, _ = gt.Lookup(res.LookupKey)
	return res, nil
}

type imageInfoArgs struct {
	Path string `json:"path"`
}

type imageInfoResult struct {
	ID        string  `json:"id"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Lightness float64 `json:"lightness"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	src, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imageInfoResult{
		ID:        src.ID,
		Width:     src.Width,
		Height:    src.Height,
		Lightness: imaging.MeanLightness(src.Image),
	}, nil
}
