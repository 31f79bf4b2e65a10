// Package delivery applies fluence matrices to beams of an external treatment
// planning system.
//
// The planning system itself is behind the System interface; this package
// only decides which plan and beam receive the matrix and surfaces the
// outcome. All state that the operation needs (patient, course and plan) is
// passed in a Selection value rather than held globally.
package delivery

import (
	"errors"
	"fmt"

	"github.com/ironsheep/fluence-tools-mcp/internal/fluence"
)

var (
	// ErrNoDeliverableBeam is returned when the selected plan has no beam
	// other than setup fields.
	ErrNoDeliverableBeam = errors.New("no deliverable beam in plan")

	// ErrApplyFailed wraps every failure reported by the planning system.
	ErrApplyFailed = errors.New("fluence apply failed")

	// ErrIncompleteSelection is returned when patient, course or plan is
	// missing from a Selection.
	ErrIncompleteSelection = errors.New("incomplete plan selection")
)

// Beam is a radiation field within a plan.
type Beam struct {
	ID           string `json:"id"`
	IsSetupField bool   `json:"is_setup_field"`
}

// Plan identifies a treatment plan and its beams.
type Plan struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Beams    []Beam `json:"beams"`
}

// Description renders the plan as "<plan> [<course>]".
func (p Plan) Description() string {
	return fmt.Sprintf("%s [%s]", p.ID, p.CourseID)
}

// DeliverableBeam returns the first beam that is not a setup field.
func (p Plan) DeliverableBeam() (Beam, error) {
	for _, b := range p.Beams {
		if !b.IsSetupField {
			return b, nil
		}
	}
	return Beam{}, fmt.Errorf("%w: plan %s", ErrNoDeliverableBeam, p.Description())
}

// Selection names the plan that receives a matrix.
type Selection struct {
	PatientID string `json:"patient_id"`
	CourseID  string `json:"course_id"`
	PlanID    string `json:"plan_id"`
}

// Complete reports whether every field of the selection is set.
func (s Selection) Complete() bool {
	return s.PatientID != "" && s.CourseID != "" && s.PlanID != ""
}

// Target addresses one beam of one plan.
type Target struct {
	Selection
	BeamID string `json:"beam_id"`
}

// System is the external treatment planning system.
type System interface {
	// Plans lists every plan of every course of the patient.
	Plans(patientID string) ([]Plan, error)

	// BeginModifications opens the patient for writing.
	BeginModifications(patientID string) error

	// SetOptimalFluence programs the beam with the matrix. The matrix origin
	// locates it relative to the isocenter.
	SetOptimalFluence(target Target, m *fluence.Matrix, autoCalculate bool) error

	// SaveModifications persists all pending changes.
	SaveModifications() error

	// DiscardModifications drops pending changes and closes the patient.
	DiscardModifications()
}

// Applier pushes matrices into a System.
type Applier struct {
	system System
}

// NewApplier creates an Applier for system.
func NewApplier(system System) *Applier {
	return &Applier{system: system}
}

// ListPlans returns the plans of a patient.
func (a *Applier) ListPlans(patientID string) ([]Plan, error) {
	if patientID == "" {
		return nil, fmt.Errorf("%w: patient id is empty", ErrIncompleteSelection)
	}
	plans, err := a.system.Plans(patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing plans: %w", ErrApplyFailed, err)
	}
	return plans, nil
}

// ApplyFluence programs the first deliverable beam of the selected plan with
// m and saves the patient. It returns true only when the planning system
// accepted and saved the matrix. A plan without a deliverable beam fails with
// ErrNoDeliverableBeam; nothing is retried.
func (a *Applier) ApplyFluence(sel Selection, autoCalculate bool, m *fluence.Matrix) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("%w: matrix is nil", fluence.ErrInvalidInput)
	}
	if !sel.Complete() {
		return false, fmt.Errorf("%w: %+v", ErrIncompleteSelection, sel)
	}

	plan, err := a.findPlan(sel)
	if err != nil {
		return false, err
	}
	beam, err := plan.DeliverableBeam()
	if err != nil {
		return false, err
	}

	if err := a.system.BeginModifications(sel.PatientID); err != nil {
		return false, fmt.Errorf("%w: begin modifications: %w", ErrApplyFailed, err)
	}
	target := Target{Selection: sel, BeamID: beam.ID}
	if err := a.system.SetOptimalFluence(target, m, autoCalculate); err != nil {
		a.system.DiscardModifications()
		return false, fmt.Errorf("%w: beam %s: %w", ErrApplyFailed, beam.ID, err)
	}
	if err := a.system.SaveModifications(); err != nil {
		return false, fmt.Errorf("%w: save modifications: %w", ErrApplyFailed, err)
	}
	return true, nil
}

func (a *Applier) findPlan(sel Selection) (Plan, error) {
	plans, err := a.ListPlans(sel.PatientID)
	if err != nil {
		return Plan{}, err
	}
	for _, p := range plans {
		if p.CourseID == sel.CourseID && p.ID == sel.PlanID {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: plan %s [%s] not found for patient %s",
		ErrApplyFailed, sel.PlanID, sel.CourseID, sel.PatientID)
}

// State is the part of an operator session that enables actions.
type State struct {
	SystemAvailable bool
	Selection       Selection
	Matrix          *fluence.Matrix
}

// CanExport reports whether a matrix is ready to be written to a file.
func CanExport(s State) bool {
	return s.Matrix != nil
}

// CanPush reports whether the current matrix can be applied to a plan.
func CanPush(s State) bool {
	return s.SystemAvailable && s.Selection.Complete() && s.Matrix != nil
}
