package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Pipeline stages
		{
			Name:        "perturb_image",
			Description: "Apply the full perturbation battery (scale, blur, brightness, salt-and-pepper noise) to one source image and store every variant. Returns the preprocessing record and the stored variant keys.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"bucket": map[string]interface{}{
						"type":        "string",
						"description": "Optional source bucket name; must match the configured source bucket",
					},
					"key": map[string]interface{}{
						"type":        "string",
						"description": "Source image file name, e.g. 1.jfif",
					},
					"run_id": map[string]interface{}{
						"type":        "string",
						"description": "Optional run id grouping preprocessing records",
					},
				},
				"required": []string{"key"},
			},
		},
		{
			Name:        "detect_text",
			Description: "Run OCR on one stored variant, score it against the ground truth and save the detection record.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"bucket": map[string]interface{}{
						"type":        "string",
						"description": "Optional variant bucket name; must match the configured variant bucket",
					},
					"key": map[string]interface{}{
						"type":        "string",
						"description": "Variant object key, e.g. 1_aZ3kQ9xL/blurred_9.jfif",
					},
				},
				"required": []string{"key"},
			},
		},
		{
			Name:        "gather_metrics",
			Description: "Aggregate every stored detection record into the robustness report and write metrics.json. Fails with a data integrity fault if the record population is incomplete.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "evaluate_corpus",
			Description: "Perturb every source image and run detection on every variant. Failures are isolated per source and per variant.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"gather": map[string]interface{}{
						"type":        "boolean",
						"description": "Also gather metrics after the run. Default false",
						"default":     false,
					},
				},
			},
		},

		// Helpers
		{
			Name:        "ground_truth_key",
			Description: "Derive the ground-truth lookup key for a variant object key and return the expected text if one is known.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"key": map[string]interface{}{
						"type":        "string",
						"description": "Variant object key",
					},
				},
				"required": []string{"key"},
			},
		},
		{
			Name:        "image_info",
			Description: "Load a local image file and return its dimensions and mean perceptual lightness.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
