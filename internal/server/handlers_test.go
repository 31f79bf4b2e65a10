package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/fluence-tools-mcp/internal/config"
	"github.com/ironsheep/fluence-tools-mcp/internal/delivery"
	"github.com/ironsheep/fluence-tools-mcp/internal/fluence"
	"github.com/ironsheep/fluence-tools-mcp/internal/imaging"
)

// fakeSystem is an in-memory planning system.
type fakeSystem struct {
	plans   map[string][]delivery.Plan
	applied []delivery.Target
	failSet error
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		plans: map[string][]delivery.Plan{
			"PAT001": {
				{ID: "ART1", CourseID: "C1", Beams: []delivery.Beam{
					{ID: "Setup", IsSetupField: true},
					{ID: "Field1"},
				}},
			},
		},
	}
}

func (f *fakeSystem) Plans(patientID string) ([]delivery.Plan, error) {
	plans, ok := f.plans[patientID]
	if !ok {
		return nil, errors.New("unknown patient")
	}
	return plans, nil
}

func (f *fakeSystem) BeginModifications(string) error { return nil }

func (f *fakeSystem) SetOptimalFluence(target delivery.Target, _ *fluence.Matrix, _ bool) error {
	if f.failSet != nil {
		return f.failSet
	}
	f.applied = append(f.applied, target)
	return nil
}

func (f *fakeSystem) SaveModifications() error { return nil }

func (f *fakeSystem) DiscardModifications() {}

// createTestImageFile writes a grayscale gradient PNG and returns its path
func createTestImageFile(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / max(width-1, 1))})
		}
	}

	path := filepath.Join(t.TempDir(), "target.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool issues a tools/call request and decodes the text content into out.
// It returns the JSON-RPC error, if any.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) *MCPError {
	t.Helper()

	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content: %v", result["content"])
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("failed to decode tool result: %v", err)
		}
	}
	return nil
}

func mustCall(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) {
	t.Helper()
	if mcpErr := callTool(t, s, name, args, out); mcpErr != nil {
		t.Fatalf("%s failed: %s: %v", name, mcpErr.Message, mcpErr.Data)
	}
}

func TestHandleToolsCall_LoadImage(t *testing.T) {
	s := New(nil)
	imgPath := createTestImageFile(t, 100, 80)

	var info struct {
		Width           int     `json:"width"`
		Height          int     `json:"height"`
		Format          string  `json:"format"`
		PhysicalWidthMm float64 `json:"physical_width_mm"`
		WillDownsample  bool    `json:"will_downsample"`
	}
	mustCall(t, s, "fluence_load_image", map[string]interface{}{"path": imgPath}, &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
	if info.PhysicalWidthMm != 250 || !info.WillDownsample {
		t.Errorf("100 px at 2.5 mm is 250 mm and should downsample, got %v mm, %v", info.PhysicalWidthMm, info.WillDownsample)
	}
}

func TestHandleToolsCall_ImportAndInspect(t *testing.T) {
	s := New(nil)
	imgPath := createTestImageFile(t, 5, 3)

	var imported struct {
		Source      string         `json:"source"`
		Rows        int            `json:"rows"`
		Cols        int            `json:"cols"`
		Origin      fluence.Origin `json:"origin"`
		Downsampled bool           `json:"downsampled"`
		MaxValue    float64        `json:"max_value"`
		Strategy    string         `json:"strategy"`
	}
	mustCall(t, s, "fluence_import", map[string]interface{}{"path": imgPath}, &imported)

	if imported.Source != imgPath {
		t.Errorf("source: got %s, want %s", imported.Source, imgPath)
	}
	if imported.Rows != 3 || imported.Cols != 5 {
		t.Errorf("matrix: got %dx%d, want 3 rows x 5 cols", imported.Rows, imported.Cols)
	}
	if imported.Origin != (fluence.Origin{X: -5, Y: 2.5}) {
		t.Errorf("origin: got %+v, want {-5 2.5}", imported.Origin)
	}
	if imported.Downsampled {
		t.Error("a 5 px wide image should not be downsampled")
	}
	if imported.MaxValue != 1 {
		t.Errorf("max value: got %v, want 1", imported.MaxValue)
	}
	if imported.Strategy != fluence.StrategyPixel {
		t.Errorf("strategy: got %s, want %s", imported.Strategy, fluence.StrategyPixel)
	}

	var cell fluence.CellInfo
	mustCall(t, s, "fluence_sample_cell", map[string]interface{}{"row": 0, "col": 4}, &cell)
	if cell.Value != 1 || cell.Color != "#FF0000" {
		t.Errorf("brightest cell: got %+v, want value 1 color #FF0000", cell)
	}
	if cell.XMm != 5 || cell.YMm != 2.5 {
		t.Errorf("cell position: got (%v, %v), want (5, 2.5)", cell.XMm, cell.YMm)
	}

	if mcpErr := callTool(t, s, "fluence_sample_cell", map[string]interface{}{"row": 3, "col": 0}, nil); mcpErr == nil {
		t.Error("out of range cell should fail")
	}

	var heat fluence.HeatMapResult
	mustCall(t, s, "fluence_heatmap", map[string]interface{}{"scale": 2}, &heat)
	if heat.Width != 10 || heat.Height != 6 {
		t.Errorf("heat map: got %dx%d, want 10x6", heat.Width, heat.Height)
	}
	data, err := base64.StdEncoding.DecodeString(heat.ImageBase64)
	if err != nil {
		t.Fatalf("heat map is not base64: %v", err)
	}
	if _, err := png.Decode(strings.NewReader(string(data))); err != nil {
		t.Errorf("heat map is not a PNG: %v", err)
	}
}

func TestHandleToolsCall_ImportCellAverage(t *testing.T) {
	s := New(nil)
	imgPath := createTestImageFile(t, 8, 4)

	var imported struct {
		Rows     int    `json:"rows"`
		Cols     int    `json:"cols"`
		Strategy string `json:"strategy"`
	}
	mustCall(t, s, "fluence_import", map[string]interface{}{
		"path":               imgPath,
		"strategy":           "cell-average",
		"physical_width_mm":  10,
		"physical_height_mm": 5,
	}, &imported)

	if imported.Rows != 2 || imported.Cols != 4 {
		t.Errorf("matrix: got %dx%d, want 2 rows x 4 cols", imported.Rows, imported.Cols)
	}
	if imported.Strategy != fluence.StrategyCellAverage {
		t.Errorf("strategy: got %s", imported.Strategy)
	}

	if mcpErr := callTool(t, s, "fluence_import", map[string]interface{}{"path": imgPath, "strategy": "spline"}, nil); mcpErr == nil {
		t.Error("unknown strategy should fail")
	}
}

func TestHandleToolsCall_RequiresMatrix(t *testing.T) {
	s := New(nil, WithSystem(newFakeSystem()))

	tests := []struct {
		tool string
		args map[string]interface{}
	}{
		{"fluence_heatmap", nil},
		{"fluence_sample_cell", map[string]interface{}{"row": 0, "col": 0}},
		{"fluence_export", map[string]interface{}{"path": filepath.Join(t.TempDir(), "out")}},
		{"fluence_push", nil},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			mcpErr := callTool(t, s, tt.tool, tt.args, nil)
			if mcpErr == nil {
				t.Fatal("expected an error before any import")
			}
			if mcpErr.Code != -32000 {
				t.Errorf("code: got %d, want -32000", mcpErr.Code)
			}
			if !strings.Contains(mcpErr.Data.(string), "import an image first") {
				t.Errorf("data: got %v", mcpErr.Data)
			}
		})
	}
}

func TestHandleToolsCall_Export(t *testing.T) {
	s := New(nil)
	mustCall(t, s, "fluence_import", map[string]interface{}{"path": createTestImageFile(t, 2, 2)}, nil)

	out := filepath.Join(t.TempDir(), "field1")
	var exported struct {
		Path string `json:"path"`
		Rows int    `json:"rows"`
		Cols int    `json:"cols"`
	}
	mustCall(t, s, "fluence_export", map[string]interface{}{"path": out}, &exported)

	if exported.Path != out+fluence.Extension {
		t.Errorf("path: got %s, want %s", exported.Path, out+fluence.Extension)
	}
	data, err := os.ReadFile(exported.Path)
	if err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	want := "# Field 1 - Fluence\n" +
		"optimalfluence\n" +
		"sizex\t2\n" +
		"sizey\t2\n" +
		"spacingx\t2.5\n" +
		"spacingy\t2.5\n" +
		"originx\t-1.2500\n" +
		"originy\t1.2500\n" +
		"values\n" +
		"0\t1\n" +
		"0\t1\n"
	if string(data) != want {
		t.Errorf("exported content:\ngot  %q\nwant %q", data, want)
	}

	var status statusResult
	mustCall(t, s, "fluence_status", nil, &status)
	if status.LastExport != exported.Path {
		t.Errorf("status last export: got %s", status.LastExport)
	}

	if mcpErr := callTool(t, s, "fluence_export", map[string]interface{}{"path": ""}, nil); mcpErr == nil {
		t.Error("empty path should fail")
	}
}

func TestHandleToolsCall_PlanWorkflow(t *testing.T) {
	sys := newFakeSystem()
	s := New(nil, WithSystem(sys))

	var listed struct {
		Plans []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"plans"`
	}
	mustCall(t, s, "fluence_list_plans", map[string]interface{}{"patient_id": "PAT001"}, &listed)
	if len(listed.Plans) != 1 || listed.Plans[0].Description != "ART1 [C1]" {
		t.Fatalf("plans: got %+v", listed.Plans)
	}

	if mcpErr := callTool(t, s, "fluence_select_plan", map[string]interface{}{"patient_id": "PAT001"}, nil); mcpErr == nil {
		t.Error("incomplete selection should fail")
	}
	mustCall(t, s, "fluence_select_plan", map[string]interface{}{
		"patient_id": "PAT001", "course_id": "C1", "plan_id": "ART1",
	}, nil)

	var status statusResult
	mustCall(t, s, "fluence_status", nil, &status)
	if status.CanPush || status.CanExport {
		t.Errorf("nothing is enabled before import: %+v", status)
	}

	mustCall(t, s, "fluence_import", map[string]interface{}{"path": createTestImageFile(t, 3, 3)}, nil)
	mustCall(t, s, "fluence_status", nil, &status)
	if !status.CanPush || !status.CanExport || !status.SystemAvailable {
		t.Errorf("import with a selection should enable push and export: %+v", status)
	}

	var pushed struct {
		Applied bool `json:"applied"`
	}
	mustCall(t, s, "fluence_push", map[string]interface{}{"auto_calculate": true}, &pushed)
	if !pushed.Applied {
		t.Error("push should report applied")
	}
	if len(sys.applied) != 1 || sys.applied[0].BeamID != "Field1" {
		t.Errorf("applied targets: %+v", sys.applied)
	}

	sys.failSet = errors.New("beam locked")
	mcpErr := callTool(t, s, "fluence_push", nil, nil)
	if mcpErr == nil {
		t.Fatal("push should fail when the planning system rejects the matrix")
	}
	if !strings.Contains(mcpErr.Data.(string), "beam locked") {
		t.Errorf("error should carry the planning system message: %v", mcpErr.Data)
	}
}

func TestHandleToolsCall_NoSystem(t *testing.T) {
	s := New(nil)

	if mcpErr := callTool(t, s, "fluence_list_plans", map[string]interface{}{"patient_id": "PAT001"}, nil); mcpErr == nil {
		t.Error("list plans without a system should fail")
	}

	mustCall(t, s, "fluence_import", map[string]interface{}{"path": createTestImageFile(t, 2, 2)}, nil)
	mustCall(t, s, "fluence_select_plan", map[string]interface{}{
		"patient_id": "PAT001", "course_id": "C1", "plan_id": "ART1",
	}, nil)

	mcpErr := callTool(t, s, "fluence_push", nil, nil)
	if mcpErr == nil {
		t.Fatal("push without a system should fail")
	}
	if !strings.Contains(mcpErr.Data.(string), "no planning system") {
		t.Errorf("data: got %v", mcpErr.Data)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := New(nil)

	tests := []struct {
		name     string
		params   string
		wantCode int
	}{
		{"unknown tool", `{"name":"image_crop","arguments":{}}`, -32000},
		{"invalid params", `[1,2]`, -32602},
		{"bad arguments", `{"name":"fluence_import","arguments":{"path":5}}`, -32000},
		{"missing image", `{"name":"fluence_import","arguments":{"path":"/nonexistent/x.png"}}`, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleRequest(&MCPRequest{
				JSONRPC: "2.0",
				ID:      1,
				Method:  "tools/call",
				Params:  json.RawMessage(tt.params),
			})
			if resp == nil || resp.Error == nil {
				t.Fatal("expected an error response")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleToolsCall_ImportRegion(t *testing.T) {
	s := New(nil)
	imgPath := createTestImageFile(t, 6, 4)

	var imported struct {
		Rows   int             `json:"rows"`
		Cols   int             `json:"cols"`
		Region *imaging.Region `json:"region"`
	}
	mustCall(t, s, "fluence_import", map[string]interface{}{"path": imgPath, "region_name": "left-half"}, &imported)
	if imported.Rows != 4 || imported.Cols != 3 {
		t.Errorf("left half: got %dx%d, want 4 rows x 3 cols", imported.Rows, imported.Cols)
	}
	if imported.Region == nil || *imported.Region != (imaging.Region{X1: 0, Y1: 0, X2: 3, Y2: 4}) {
		t.Errorf("region: got %+v", imported.Region)
	}

	mustCall(t, s, "fluence_import", map[string]interface{}{
		"path":   imgPath,
		"region": map[string]interface{}{"x1": 1, "y1": 1, "x2": 3, "y2": 2},
	}, &imported)
	if imported.Rows != 1 || imported.Cols != 2 {
		t.Errorf("explicit region: got %dx%d, want 1 row x 2 cols", imported.Rows, imported.Cols)
	}

	if mcpErr := callTool(t, s, "fluence_import", map[string]interface{}{"path": imgPath, "region_name": "middle"}, nil); mcpErr == nil {
		t.Error("unknown region name should fail")
	}
}

func TestHandleToolsCall_HeatMapGrid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HeatMap.Scale = 4
	s := New(cfg)
	mustCall(t, s, "fluence_import", map[string]interface{}{"path": createTestImageFile(t, 2, 2)}, nil)

	var heat fluence.HeatMapResult
	mustCall(t, s, "fluence_heatmap", map[string]interface{}{"grid_color": "#000000"}, &heat)
	if heat.Scale != 4 || heat.Width != 8 {
		t.Errorf("configured scale: got scale %d width %d, want 4 and 8", heat.Scale, heat.Width)
	}

	data, _ := base64.StdEncoding.DecodeString(heat.ImageBase64)
	img, err := png.Decode(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("heat map is not a PNG: %v", err)
	}
	if r, g, b, _ := img.At(4, 1).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Errorf("cell border should be black, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	if mcpErr := callTool(t, s, "fluence_heatmap", map[string]interface{}{"grid_color": "black"}, nil); mcpErr == nil {
		t.Error("invalid grid color should fail")
	}
}
