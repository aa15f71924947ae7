package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"despachante/pkg/domain"
)

const migrateLockID int64 = 51844220

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &VehicleModel{}, &ServiceRequestModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreFromConn wraps an existing connection without migrating.
func NewGormStoreFromConn(conn *sql.DB) (*GormStore, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return &GormStore{db: db}, nil
}

func gormConfig() *gorm.Config {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{Logger: gormLog, TranslateError: true}
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

// CreateUser inserts a new user; duplicate emails return ErrEmailTaken.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("email_usuario = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email_usuario = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUserProfile applies the non-nil fields of upd.
func (s *GormStore) UpdateUserProfile(ctx context.Context, id string, upd ProfileUpdate) (domain.User, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		updates["nome"] = *upd.Name
	}
	if upd.Email != nil {
		updates["email_usuario"] = *upd.Email
	}
	if upd.Phone != nil {
		updates["telefone"] = *upd.Phone
	}
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.User{}, ErrNotFound
	}
	user, ok, err := s.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// SetUserPassword replaces the stored password hash.
func (s *GormStore) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).Updates(map[string]any{
		"senha_usuario": passwordHash,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddVehicle registers a vehicle for its owner.
func (s *GormStore) AddVehicle(ctx context.Context, v domain.Vehicle) error {
	model := vehicleToModel(v)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrVehicleExists
		}
		return err
	}
	return nil
}

// ListVehicles returns a user's vehicles, oldest first.
func (s *GormStore) ListVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	var models []VehicleModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at asc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Vehicle, 0, len(models))
	for _, m := range models {
		out = append(out, vehicleFromModel(m))
	}
	return out, nil
}

// DeleteVehicle removes a vehicle owned by userID. It reports whether a row was deleted.
func (s *GormStore) DeleteVehicle(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&VehicleModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetServiceRequest finds the request row for a (user, plate, service) tuple.
func (s *GormStore) GetServiceRequest(ctx context.Context, userID, plate, serviceType string) (domain.ServiceRequest, bool, error) {
	var model ServiceRequestModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND placa_do_veiculo = ? AND tipo_servico = ?", userID, plate, serviceType).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ServiceRequest{}, false, nil
		}
		return domain.ServiceRequest{}, false, err
	}
	req, err := serviceRequestFromModel(model)
	if err != nil {
		return domain.ServiceRequest{}, false, fmt.Errorf("decode service request: %w", err)
	}
	return req, true, nil
}

// UpsertServiceRequest inserts a request or, when the tuple already exists,
// replaces its documents, applicant, nickname and payment method. Status and
// requested date of an existing row are kept. The stored row is returned.
func (s *GormStore) UpsertServiceRequest(ctx context.Context, req domain.ServiceRequest) (domain.ServiceRequest, error) {
	model, err := serviceRequestToModel(req)
	if err != nil {
		return domain.ServiceRequest{}, fmt.Errorf("encode service request: %w", err)
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "placa_do_veiculo"}, {Name: "tipo_servico"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_pdfs", "document_keys", "nome_completo", "nome_veiculo", "forma_pagamento", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	saved, ok, err := s.GetServiceRequest(ctx, req.UserID, req.VehiclePlate, req.ServiceType)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if !ok {
		return domain.ServiceRequest{}, ErrNotFound
	}
	return saved, nil
}

// ListServiceRequests returns a user's requests, newest first.
func (s *GormStore) ListServiceRequests(ctx context.Context, userID string) ([]domain.ServiceRequest, error) {
	var models []ServiceRequestModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("data_solicitacao desc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ServiceRequest, 0, len(models))
	for _, m := range models {
		req, err := serviceRequestFromModel(m)
		if err != nil {
			return nil, fmt.Errorf("decode service request %s: %w", m.ID, err)
		}
		out = append(out, req)
	}
	return out, nil
}

// SetPayment records the provider charge for a request.
func (s *GormStore) SetPayment(ctx context.Context, requestID, paymentID, paymentStatus string) error {
	res := s.db.WithContext(ctx).Model(&ServiceRequestModel{}).Where("id = ?", requestID).Updates(map[string]any{
		"payment_id":     paymentID,
		"payment_status": paymentStatus,
		"updated_at":     time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
