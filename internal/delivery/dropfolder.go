package delivery

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/fluence-tools-mcp/internal/fluence"
)

// ManifestName is the plan manifest file inside a drop folder.
const ManifestName = "plans.yaml"

// manifest is the on-disk layout of ManifestName:
//
//	patients:
//	  - id: PAT001
//	    plans:
//	      - id: ART1
//	        courseId: C1
//	        beams:
//	          - id: Setup
//	            setupField: true
//	          - id: Field1
type manifest struct {
	Patients []struct {
		ID    string `yaml:"id"`
		Plans []struct {
			ID       string `yaml:"id"`
			CourseID string `yaml:"courseId"`
			Beams    []struct {
				ID         string `yaml:"id"`
				SetupField bool   `yaml:"setupField"`
			} `yaml:"beams"`
		} `yaml:"plans"`
	} `yaml:"patients"`
}

// DropFolder is a System backed by a directory that a planning system
// imports from. Plans are read from the folder's manifest; applying a matrix
// writes <root>/<patient>/<course>/<plan>/<beam>.optimal_fluence.
//
// Writes are staged between BeginModifications and SaveModifications so a
// failed push leaves no files behind.
type DropFolder struct {
	root    string
	options fluence.WriteOptions

	mu      sync.Mutex
	open    string
	pending map[string]*fluence.Matrix
}

// NewDropFolder opens the drop folder at root. The manifest is read on every
// Plans call so edits are picked up without a restart.
func NewDropFolder(root string, opts fluence.WriteOptions) (*DropFolder, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open drop folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("drop folder %s is not a directory", root)
	}
	return &DropFolder{root: root, options: opts}, nil
}

// Plans implements System.
func (d *DropFolder) Plans(patientID string) ([]Plan, error) {
	data, err := os.ReadFile(filepath.Join(d.root, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read plan manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse plan manifest: %w", err)
	}

	for _, p := range m.Patients {
		if p.ID != patientID {
			continue
		}
		plans := make([]Plan, 0, len(p.Plans))
		for _, pl := range p.Plans {
			plan := Plan{ID: pl.ID, CourseID: pl.CourseID}
			for _, b := range pl.Beams {
				plan.Beams = append(plan.Beams, Beam{ID: b.ID, IsSetupField: b.SetupField})
			}
			plans = append(plans, plan)
		}
		return plans, nil
	}
	return nil, fmt.Errorf("patient %s not found in manifest", patientID)
}

// BeginModifications implements System.
func (d *DropFolder) BeginModifications(patientID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open != "" && d.open != patientID {
		return fmt.Errorf("patient %s already open for modification", d.open)
	}
	d.open = patientID
	d.pending = make(map[string]*fluence.Matrix)
	return nil
}

// SetOptimalFluence implements System. The matrix is staged until
// SaveModifications.
func (d *DropFolder) SetOptimalFluence(target Target, m *fluence.Matrix, autoCalculate bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open != target.PatientID {
		return fmt.Errorf("patient %s is not open for modification", target.PatientID)
	}
	d.pending[d.beamPath(target)] = m
	return nil
}

// SaveModifications implements System.
func (d *DropFolder) SaveModifications() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		d.open = ""
		d.pending = nil
	}()

	for path, m := range d.pending {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create beam directory: %w", err)
		}
		if err := fluence.WriteFile(path, m, d.options); err != nil {
			return err
		}
	}
	return nil
}

// DiscardModifications implements System.
func (d *DropFolder) DiscardModifications() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = ""
	d.pending = nil
}

func (d *DropFolder) beamPath(t Target) string {
	return filepath.Join(d.root, t.PatientID, t.CourseID, t.PlanID, t.BeamID+fluence.Extension)
}
