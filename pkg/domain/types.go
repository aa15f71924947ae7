package domain

import "time"

// ServiceStatus is the processing state of a service request.
type ServiceStatus string

const (
	StatusPending    ServiceStatus = "Pendente"
	StatusInProgress ServiceStatus = "Em andamento"
	StatusCompleted  ServiceStatus = "Concluído"
	StatusCancelled  ServiceStatus = "Cancelado"
)

// Valid reports whether s is one of the known statuses.
func (s ServiceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentMethod is how the applicant pays the service fee.
type PaymentMethod string

const (
	PaymentBoleto PaymentMethod = "boleto"
	PaymentDebit  PaymentMethod = "debito"
	PaymentCredit PaymentMethod = "credito"
	PaymentPix    PaymentMethod = "pix"
)

// ParsePaymentMethod normalizes raw input into a known payment method.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(normalizeToken(raw)) {
	case PaymentBoleto:
		return PaymentBoleto, true
	case PaymentDebit, "débito":
		return PaymentDebit, true
	case PaymentCredit, "crédito":
		return PaymentCredit, true
	case PaymentPix:
		return PaymentPix, true
	default:
		return "", false
	}
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Vehicle struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Plate     string    `json:"placa"`
	Nickname  string    `json:"nome"`
	CreatedAt time.Time `json:"createdAt"`
}

// ServiceRequest is one user's request for one vehicle service.
// Rows are identified by (UserID, VehiclePlate, ServiceType).
type ServiceRequest struct {
	ID              string        `json:"id"`
	UserID          string        `json:"-"`
	ServiceType     string        `json:"tipo_servico"`
	PaymentMethod   PaymentMethod `json:"forma_pagamento"`
	Status          ServiceStatus `json:"status_servico"`
	RequestedAt     time.Time     `json:"-"`
	DocumentURLs    []string      `json:"file_pdfs"`
	DocumentKeys    []string      `json:"-"`
	ApplicantName   string        `json:"nome_completo"`
	VehiclePlate    string        `json:"placa_do_veiculo"`
	VehicleNickname string        `json:"nome_veiculo"`
	PaymentID       string        `json:"payment_id,omitempty"`
	PaymentStatus   string        `json:"payment_status,omitempty"`
	UpdatedAt       time.Time     `json:"-"`
}

// RequestDateLayout is the dd/mm/yyyy layout used for data_solicitacao.
const RequestDateLayout = "02/01/2006"
