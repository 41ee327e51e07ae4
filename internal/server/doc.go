// Package server implements the MCP (Model Context Protocol) server that
// exposes the OCR robustness pipeline as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Pipeline stages:
//   - perturb_image: Perturb one source image and store its variants
//   - detect_text: Run OCR on one variant and save the scored record
//   - gather_metrics: Aggregate all records and write metrics.json
//   - evaluate_corpus: Run both stages over every source image
//
// Helpers:
//   - ground_truth_key: Show how a variant key maps to its ground truth
//   - image_info: Dimensions and mean lightness of a local image file
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// A data integrity fault from gather_metrics is reported the same way; no
// partial report is returned.
//
// # Usage
//
//	srv := server.New(p, version, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
