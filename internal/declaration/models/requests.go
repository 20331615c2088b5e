package models

// DocumentInput references a file already hosted elsewhere.
type DocumentInput struct {
	Type string `json:"type" validate:"required"`
	URL  string `json:"url" validate:"required"`
}

// CreateRequest is the citizen's declaration submission.
type CreateRequest struct {
	ChildFirstName string          `json:"childFirstName" validate:"required"`
	ChildLastName  string          `json:"childLastName" validate:"required"`
	ChildGender    string          `json:"childGender" validate:"required"`
	BirthDate      string          `json:"birthDate" validate:"required"`
	BirthPlace     string          `json:"birthPlace" validate:"required"`
	FatherName     string          `json:"fatherName" validate:"required"`
	MotherName     string          `json:"motherName" validate:"required"`
	Documents      []DocumentInput `json:"documents" validate:"omitempty,dive"`
}

// TransitionRequest is an agent's status change.
type TransitionRequest struct {
	Status  string  `json:"status" validate:"required"`
	Comment *string `json:"comment,omitempty"`
}
