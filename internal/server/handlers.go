package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/ironsheep/fluence-tools-mcp/internal/delivery"
	"github.com/ironsheep/fluence-tools-mcp/internal/fluence"
	"github.com/ironsheep/fluence-tools-mcp/internal/imaging"
)

var (
	errNoMatrix = errors.New("no fluence matrix: import an image first")
	errNoSystem = errors.New("no planning system connected")
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "fluence_import", "fluence_export").
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
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		if s.debug {
			log.Printf("tool %s failed: %v", params.Name, err)
		}
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
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for optional parameters
//  3. Reads or updates the session under the server mutex
//  4. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Image import
	case "fluence_load_image":
		return s.handleLoadImage(args)
	case "fluence_import":
		return s.handleImport(args)

	// Inspection
	case "fluence_heatmap":
		return s.handleHeatMap(args)
	case "fluence_sample_cell":
		return s.handleSampleCell(args)

	// Output
	case "fluence_export":
		return s.handleExport(args)
	case "fluence_list_plans":
		return s.handleListPlans(args)
	case "fluence_select_plan":
		return s.handleSelectPlan(args)
	case "fluence_push":
		return s.handlePush(args)
	case "fluence_status":
		return s.handleStatus()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Image Import Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleLoadImage(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path, s.cfg.Sampling.ResolutionMm, s.cfg.Sampling.MaxPhysicalWidthMm)
}

type importArgs struct {
	Path             string          `json:"path"`
	Strategy         string          `json:"strategy"`
	PhysicalWidthMm  float64         `json:"physical_width_mm"`
	PhysicalHeightMm float64         `json:"physical_height_mm"`
	Region           *imaging.Region `json:"region"`
	RegionName       string          `json:"region_name"`
}

type importResult struct {
	Source string `json:"source"`
	*fluence.Result
}

func (s *Server) handleImport(args json.RawMessage) (interface{}, error) {
	var a importArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	opts := s.cfg.ConvertOptions()
	if a.Strategy != "" {
		opts.Builder.Strategy = a.Strategy
	}
	if a.PhysicalWidthMm != 0 {
		opts.Builder.PhysicalWidthMm = a.PhysicalWidthMm
	}
	if a.PhysicalHeightMm != 0 {
		opts.Builder.PhysicalHeightMm = a.PhysicalHeightMm
	}

	// Re-read the file so an edited image is picked up.
	s.cache.Evict(a.Path)
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	opts.Region = a.Region
	if a.RegionName != "" {
		b := img.Bounds()
		r, err := imaging.NamedRegion(b.Dx(), b.Dy(), a.RegionName)
		if err != nil {
			return nil, err
		}
		opts.Region = &r
	}

	result, err := fluence.Convert(img, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", a.Path, err)
	}

	s.mu.Lock()
	s.session.source = a.Path
	s.session.result = result
	s.session.exported = ""
	s.mu.Unlock()

	if s.debug {
		log.Printf("imported %s: %dx%d matrix (downsampled=%v)", a.Path, result.Cols, result.Rows, result.Downsampled)
	}
	return &importResult{Source: a.Path, Result: result}, nil
}

// currentMatrix returns the session matrix or errNoMatrix.
func (s *Server) currentMatrix() (*fluence.Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !delivery.CanExport(s.state()) {
		return nil, errNoMatrix
	}
	return s.session.result.Matrix, nil
}

// === Inspection Handlers ===

type heatMapArgs struct {
	Scale     int    `json:"scale"`
	GridColor string `json:"grid_color"`
}

func (s *Server) handleHeatMap(args json.RawMessage) (interface{}, error) {
	var a heatMapArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := s.cfg.HeatMapOptions()
	if a.Scale != 0 {
		opts.Scale = a.Scale
	}
	if a.GridColor != "" {
		opts.GridColor = a.GridColor
	}
	m, err := s.currentMatrix()
	if err != nil {
		return nil, err
	}
	return fluence.EncodeHeatMapPNG(m, opts)
}

type sampleCellArgs struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (s *Server) handleSampleCell(args json.RawMessage) (interface{}, error) {
	var a sampleCellArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	m, err := s.currentMatrix()
	if err != nil {
		return nil, err
	}
	return m.Cell(a.Row, a.Col)
}

// === Output Handlers ===

type exportResult struct {
	Path   string         `json:"path"`
	Rows   int            `json:"rows"`
	Cols   int            `json:"cols"`
	Origin fluence.Origin `json:"origin"`
}

func (s *Server) handleExport(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("%w: path is required", fluence.ErrInvalidInput)
	}

	m, err := s.currentMatrix()
	if err != nil {
		return nil, err
	}

	path := fluence.EnsureExtension(a.Path)
	if err := fluence.WriteFile(path, m, s.cfg.WriteOptions()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.session.exported = path
	s.mu.Unlock()

	rows, cols := m.Dims()
	return &exportResult{Path: path, Rows: rows, Cols: cols, Origin: m.Origin()}, nil
}

type listPlansArgs struct {
	PatientID string `json:"patient_id"`
}

type planInfo struct {
	delivery.Plan
	Description string `json:"description"`
}

func (s *Server) handleListPlans(args json.RawMessage) (interface{}, error) {
	var a listPlansArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.applier == nil {
		return nil, errNoSystem
	}

	plans, err := s.applier.ListPlans(a.PatientID)
	if err != nil {
		return nil, err
	}
	infos := make([]planInfo, len(plans))
	for i, p := range plans {
		infos[i] = planInfo{Plan: p, Description: p.Description()}
	}
	return map[string]interface{}{
		"patient_id": a.PatientID,
		"plans":      infos,
	}, nil
}

func (s *Server) handleSelectPlan(args json.RawMessage) (interface{}, error) {
	var sel delivery.Selection
	if err := json.Unmarshal(args, &sel); err != nil {
		return nil, err
	}
	if !sel.Complete() {
		return nil, fmt.Errorf("%w: patient_id, course_id and plan_id are required", delivery.ErrIncompleteSelection)
	}

	s.mu.Lock()
	s.session.selection = sel
	s.mu.Unlock()

	return map[string]interface{}{
		"selection":   sel,
		"description": delivery.Plan{ID: sel.PlanID, CourseID: sel.CourseID}.Description(),
	}, nil
}

type pushArgs struct {
	AutoCalculate bool `json:"auto_calculate"`
}

func (s *Server) handlePush(args json.RawMessage) (interface{}, error) {
	var a pushArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	// Held for the whole push so selection and matrix cannot change under it.
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state()
	if !delivery.CanPush(st) {
		switch {
		case st.Matrix == nil:
			return nil, errNoMatrix
		case !st.SystemAvailable:
			return nil, errNoSystem
		default:
			return nil, fmt.Errorf("%w: select a plan first", delivery.ErrIncompleteSelection)
		}
	}

	ok, err := s.applier.ApplyFluence(st.Selection, a.AutoCalculate, st.Matrix)
	if err != nil {
		return nil, err
	}
	log.Printf("applied fluence from %s to %s", s.session.source,
		delivery.Plan{ID: st.Selection.PlanID, CourseID: st.Selection.CourseID}.Description())
	return map[string]interface{}{
		"applied":   ok,
		"selection": st.Selection,
	}, nil
}

type statusResult struct {
	Source          string             `json:"source,omitempty"`
	Matrix          *fluence.Result    `json:"matrix,omitempty"`
	Selection       delivery.Selection `json:"selection"`
	SystemAvailable bool               `json:"system_available"`
	LastExport      string             `json:"last_export,omitempty"`
	CanExport       bool               `json:"can_export"`
	CanPush         bool               `json:"can_push"`
	CachedImages    int                `json:"cached_images"`
}

func (s *Server) handleStatus() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state()
	return &statusResult{
		Source:          s.session.source,
		Matrix:          s.session.result,
		Selection:       st.Selection,
		SystemAvailable: st.SystemAvailable,
		LastExport:      s.session.exported,
		CanExport:       delivery.CanExport(st),
		CanPush:         delivery.CanPush(st),
		CachedImages:    s.cache.Len(),
	}, nil
}
