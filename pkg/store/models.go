package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"despachante/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"column:nome;not null"`
	Email        string    `gorm:"column:email_usuario;uniqueIndex;not null"`
	Phone        string    `gorm:"column:telefone"`
	PasswordHash string    `gorm:"column:senha_usuario;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "Usuarios" }

type VehicleModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_vehicle_owner_plate"`
	Plate     string    `gorm:"column:placa;not null;uniqueIndex:idx_vehicle_owner_plate"`
	Nickname  string    `gorm:"column:nome"`
	CreatedAt time.Time `gorm:"not null"`
}

func (VehicleModel) TableName() string { return "Veiculos" }

type ServiceRequestModel struct {
	ID              string         `gorm:"primaryKey"`
	UserID          string         `gorm:"not null;uniqueIndex:idx_service_request_tuple"`
	VehiclePlate    string         `gorm:"column:placa_do_veiculo;not null;uniqueIndex:idx_service_request_tuple"`
	ServiceType     string         `gorm:"column:tipo_servico;not null;uniqueIndex:idx_service_request_tuple"`
	PaymentMethod   string         `gorm:"column:forma_pagamento;not null"`
	Status          string         `gorm:"column:status_servico;not null"`
	RequestedAt     time.Time      `gorm:"column:data_solicitacao;not null"`
	DocumentURLs    datatypes.JSON `gorm:"column:file_pdfs;type:jsonb"`
	DocumentKeys    datatypes.JSON `gorm:"type:jsonb"`
	ApplicantName   string         `gorm:"column:nome_completo;not null"`
	VehicleNickname string         `gorm:"column:nome_veiculo"`
	PaymentID       string
	PaymentStatus   string
	UpdatedAt       time.Time
}

func (ServiceRequestModel) TableName() string { return "servicoSolicitado" }

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func vehicleToModel(v domain.Vehicle) VehicleModel {
	return VehicleModel{
		ID:        v.ID,
		UserID:    v.UserID,
		Plate:     v.Plate,
		Nickname:  v.Nickname,
		CreatedAt: v.CreatedAt,
	}
}

func vehicleFromModel(m VehicleModel) domain.Vehicle {
	return domain.Vehicle{
		ID:        m.ID,
		UserID:    m.UserID,
		Plate:     m.Plate,
		Nickname:  m.Nickname,
		CreatedAt: m.CreatedAt,
	}
}

func serviceRequestToModel(r domain.ServiceRequest) (ServiceRequestModel, error) {
	urls, err := encodeStrings(r.DocumentURLs)
	if err != nil {
		return ServiceRequestModel{}, err
	}
	keys, err := encodeStrings(r.DocumentKeys)
	if err != nil {
		return ServiceRequestModel{}, err
	}
	return ServiceRequestModel{
		ID:              r.ID,
		UserID:          r.UserID,
		VehiclePlate:    r.VehiclePlate,
		ServiceType:     r.ServiceType,
		PaymentMethod:   string(r.PaymentMethod),
		Status:          string(r.Status),
		RequestedAt:     r.RequestedAt,
		DocumentURLs:    urls,
		DocumentKeys:    keys,
		ApplicantName:   r.ApplicantName,
		VehicleNickname: r.VehicleNickname,
		PaymentID:       r.PaymentID,
		PaymentStatus:   r.PaymentStatus,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func serviceRequestFromModel(m ServiceRequestModel) (domain.ServiceRequest, error) {
	urls, err := decodeStrings(m.DocumentURLs)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	keys, err := decodeStrings(m.DocumentKeys)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	return domain.ServiceRequest{
		ID:              m.ID,
		UserID:          m.UserID,
		ServiceType:     m.ServiceType,
		PaymentMethod:   domain.PaymentMethod(m.PaymentMethod),
		Status:          domain.ServiceStatus(m.Status),
		RequestedAt:     m.RequestedAt,
		DocumentURLs:    urls,
		DocumentKeys:    keys,
		ApplicantName:   m.ApplicantName,
		VehiclePlate:    m.VehiclePlate,
		VehicleNickname: m.VehicleNickname,
		PaymentID:       m.PaymentID,
		PaymentStatus:   m.PaymentStatus,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func encodeStrings(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeStrings(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
