package models

import (
	"time"

	paymentModels "etatcivil/internal/payment/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

// Document is a supporting file attached to a declaration.
type Document struct {
	ID            id.DocumentID    `json:"id"`
	DeclarationID id.DeclarationID `json:"declarationId"`
	Type          string           `json:"type"`
	URL           string           `json:"url"`
	PublicID      string           `json:"publicId,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Declaration is a citizen's birth declaration.
//
// Invariants:
//   - created PENDING; DELETED only through soft delete
//   - AgentID is set when an agent takes the declaration in progress
//   - Documents are append-only
type Declaration struct {
	ID             id.DeclarationID       `json:"id"`
	CitizenID      id.UserID              `json:"citizenId"`
	ChildFirstName string                 `json:"childFirstName"`
	ChildLastName  string                 `json:"childLastName"`
	ChildGender    string                 `json:"childGender"`
	BirthDate      time.Time              `json:"birthDate"`
	BirthPlace     string                 `json:"birthPlace"`
	FatherName     string                 `json:"fatherName"`
	MotherName     string                 `json:"motherName"`
	Status         workflow.Status        `json:"status"`
	AgentID        *id.UserID             `json:"agentId,omitempty"`
	Comment        string                 `json:"comment,omitempty"`
	Documents      []Document             `json:"documents"`
	Payment        *paymentModels.Payment `json:"payment,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// Child carries the validated child and parent details of a submission.
type Child struct {
	FirstName  string
	LastName   string
	Gender     string
	BirthDate  time.Time
	BirthPlace string
	FatherName string
	MotherName string
}

func NewDeclaration(declarationID id.DeclarationID, citizenID id.UserID, child Child, now time.Time) (*Declaration, error) {
	if child.FirstName == "" || child.LastName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "child name cannot be empty")
	}
	if child.BirthDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "birth date is required")
	}
	return &Declaration{
		ID:             declarationID,
		CitizenID:      citizenID,
		ChildFirstName: child.FirstName,
		ChildLastName:  child.LastName,
		ChildGender:    child.Gender,
		BirthDate:      child.BirthDate,
		BirthPlace:     child.BirthPlace,
		FatherName:     child.FatherName,
		MotherName:     child.MotherName,
		Status:         workflow.StatusPending,
		Documents:      []Document{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func NewDocument(documentID id.DocumentID, declarationID id.DeclarationID, docType, url, publicID string, now time.Time) (*Document, error) {
	if docType == "" || url == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document type and url are required")
	}
	return &Document{
		ID:            documentID,
		DeclarationID: declarationID,
		Type:          docType,
		URL:           url,
		PublicID:      publicID,
		CreatedAt:     now,
	}, nil
}

// CanTransition checks the move against the workflow machine.
func (d *Declaration) CanTransition(m workflow.Machine, to workflow.Status) error {
	return m.Check(d.Status, to)
}

// ApplyTransition sets the new status. The acting agent is recorded only when
// the declaration moves into IN_PROGRESS; a nil comment leaves the previous one.
func (d *Declaration) ApplyTransition(to workflow.Status, agentID id.UserID, comment *string, now time.Time) {
	d.Status = to
	if to == workflow.StatusInProgress {
		a := agentID
		d.AgentID = &a
	}
	if comment != nil {
		d.Comment = *comment
	}
	d.UpdatedAt = now
}

// CanDelete rejects deleting twice.
func (d *Declaration) CanDelete() error {
	if d.Status == workflow.StatusDeleted {
		return dErrors.New(dErrors.CodeNotFound, "Déclaration introuvable")
	}
	return nil
}

func (d *Declaration) ApplyDeleted(now time.Time) {
	d.Status = workflow.StatusDeleted
	d.UpdatedAt = now
}

// ApplyPaid moves a declaration still awaiting payment into processing.
// Other statuses are left alone.
func (d *Declaration) ApplyPaid(now time.Time) bool {
	if d.Status != workflow.StatusPending {
		return false
	}
	d.Status = workflow.StatusInProgress
	d.UpdatedAt = now
	return true
}
