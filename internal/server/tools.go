package server

import "github.com/ironsheep/fluence-tools-mcp/internal/imaging"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image import
		{
			Name:        "fluence_load_image",
			Description: "Inspect an image file before import: dimensions, format, physical width at the sampling resolution and whether it will be downsampled.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": prop("string", "Absolute path to the image file"),
			}, "path"),
		},
		{
			Name:        "fluence_import",
			Description: "Convert an image into a normalized fluence matrix and make it the current matrix. Bright pixels become high fluence.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":               prop("string", "Absolute path to the image file"),
				"strategy":           prop("string", "Matrix builder: 'pixel' (one cell per pixel) or 'cell-average'. Defaults to the configured strategy"),
				"physical_width_mm":  prop("number", "Physical image width for the cell-average strategy"),
				"physical_height_mm": prop("number", "Physical image height for the cell-average strategy"),
				"region": objectSchema(map[string]interface{}{
					"x1": prop("integer", "Left edge X coordinate (0-based)"),
					"y1": prop("integer", "Top edge Y coordinate (0-based)"),
					"x2": prop("integer", "Right edge X coordinate (exclusive)"),
					"y2": prop("integer", "Bottom edge Y coordinate (exclusive)"),
				}, "x1", "y1", "x2", "y2"),
				"region_name": map[string]interface{}{
					"type":        "string",
					"description": "Named part of the image to convert; takes precedence over region",
					"enum":        imaging.RegionNames,
				},
			}, "path"),
		},

		// Inspection
		{
			Name:        "fluence_heatmap",
			Description: "Render the current matrix as a blue-to-red heat map and return it as base64-encoded PNG.",
			InputSchema: objectSchema(map[string]interface{}{
				"scale": map[string]interface{}{
					"type":        "integer",
					"description": "Pixels per cell edge. Defaults to the configured scale",
					"minimum":     1,
				},
				"grid_color": prop("string", "Outline cells in this color, e.g. '#FFFFFF80'. Needs a scale of at least 3"),
			}),
		},
		{
			Name:        "fluence_sample_cell",
			Description: "Get the value, heat-map color and physical position (mm from isocenter) of one matrix cell.",
			InputSchema: objectSchema(map[string]interface{}{
				"row": prop("integer", "Row index, 0 at the top"),
				"col": prop("integer", "Column index, 0 at the left"),
			}, "row", "col"),
		},

		// Output
		{
			Name:        "fluence_export",
			Description: "Write the current matrix to an .optimal_fluence file. The extension is added when missing.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": prop("string", "Absolute output path"),
			}, "path"),
		},
		{
			Name:        "fluence_list_plans",
			Description: "List the plans and beams of a patient in the connected planning system.",
			InputSchema: objectSchema(map[string]interface{}{
				"patient_id": prop("string", "Patient identifier"),
			}, "patient_id"),
		},
		{
			Name:        "fluence_select_plan",
			Description: "Select the plan that fluence_push programs.",
			InputSchema: objectSchema(map[string]interface{}{
				"patient_id": prop("string", "Patient identifier"),
				"course_id":  prop("string", "Course identifier"),
				"plan_id":    prop("string", "Plan identifier"),
			}, "patient_id", "course_id", "plan_id"),
		},
		{
			Name:        "fluence_push",
			Description: "Apply the current matrix to the first non-setup beam of the selected plan and save the patient.",
			InputSchema: objectSchema(map[string]interface{}{
				"auto_calculate": map[string]interface{}{
					"type":        "boolean",
					"description": "Ask the planning system to recalculate dose after applying",
					"default":     false,
				},
			}),
		},
		{
			Name:        "fluence_status",
			Description: "Summarize the session: current image and matrix, plan selection and which actions are available.",
			InputSchema: objectSchema(map[string]interface{}{}),
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
