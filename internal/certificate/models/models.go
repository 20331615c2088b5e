package models

import (
	"time"

	paymentModels "etatcivil/internal/payment/models"
	"etatcivil/internal/workflow"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
)

// File is an issued or supporting file attached to a certificate request.
type File struct {
	ID            id.DocumentID    `json:"id"`
	CertificateID id.CertificateID `json:"certificateId"`
	Type          string           `json:"type"`
	URL           string           `json:"url"`
	PublicID      string           `json:"publicId,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Certificate is a citizen's request for a birth certificate copy.
//
// Invariants:
//   - TrackingNumber is unique and never changes
//   - every transition records the acting agent
//   - Files are append-only
type Certificate struct {
	ID             id.CertificateID       `json:"id"`
	CitizenID      id.UserID              `json:"citizenId"`
	FullName       string                 `json:"fullName"`
	BirthDate      time.Time              `json:"birthDate"`
	BirthPlace     string                 `json:"birthPlace"`
	FatherName     string                 `json:"fatherName"`
	MotherName     string                 `json:"motherName"`
	Reason         string                 `json:"reason"`
	RegistryNumber string                 `json:"registryNumber,omitempty"`
	Status         workflow.Status        `json:"status"`
	TrackingNumber string                 `json:"trackingNumber"`
	Comment        string                 `json:"comment,omitempty"`
	AgentID        *id.UserID             `json:"agentId,omitempty"`
	Files          []File                 `json:"files"`
	Payment        *paymentModels.Payment `json:"payment,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// Subject carries the validated person details of a request.
type Subject struct {
	FullName       string
	BirthDate      time.Time
	BirthPlace     string
	FatherName     string
	MotherName     string
	Reason         string
	RegistryNumber string
}

func NewCertificate(certificateID id.CertificateID, citizenID id.UserID, subject Subject, trackingNumber string, now time.Time) (*Certificate, error) {
	if subject.FullName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "full name cannot be empty")
	}
	if trackingNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tracking number is required")
	}
	return &Certificate{
		ID:             certificateID,
		CitizenID:      citizenID,
		FullName:       subject.FullName,
		BirthDate:      subject.BirthDate,
		BirthPlace:     subject.BirthPlace,
		FatherName:     subject.FatherName,
		MotherName:     subject.MotherName,
		Reason:         subject.Reason,
		RegistryNumber: subject.RegistryNumber,
		Status:         workflow.StatusPending,
		TrackingNumber: trackingNumber,
		Files:          []File{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func NewFile(fileID id.DocumentID, certificateID id.CertificateID, fileType, url, publicID string, now time.Time) (*File, error) {
	if fileType == "" || url == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "file type and url are required")
	}
	return &File{
		ID:            fileID,
		CertificateID: certificateID,
		Type:          fileType,
		URL:           url,
		PublicID:      publicID,
		CreatedAt:     now,
	}, nil
}

func (c *Certificate) CanTransition(m workflow.Machine, to workflow.Status) error {
	return m.Check(c.Status, to)
}

// ApplyTransition sets the new status and always records the acting agent.
func (c *Certificate) ApplyTransition(to workflow.Status, agentID id.UserID, comment *string, now time.Time) {
	c.Status = to
	a := agentID
	c.AgentID = &a
	if comment != nil {
		c.Comment = *comment
	}
	c.UpdatedAt = now
}

// ApplyPaid moves a certificate request still awaiting payment into processing.
func (c *Certificate) ApplyPaid(now time.Time) bool {
	if c.Status != workflow.StatusPending {
		return false
	}
	c.Status = workflow.StatusInProgress
	c.UpdatedAt = now
	return true
}
