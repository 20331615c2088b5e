package models

type CreateRequest struct {
	FullName       string `json:"fullName" validate:"required"`
	BirthDate      string `json:"birthDate" validate:"required"`
	BirthPlace     string `json:"birthPlace" validate:"required"`
	FatherName     string `json:"fatherName" validate:"required"`
	MotherName     string `json:"motherName" validate:"required"`
	Reason         string `json:"reason" validate:"required"`
	RegistryNumber string `json:"registryNumber"`
}

type TransitionRequest struct {
	Status  string  `json:"status" validate:"required"`
	Comment *string `json:"comment,omitempty"`
}
