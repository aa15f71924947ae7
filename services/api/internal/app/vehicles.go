package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"despachante/internal/util"
	"despachante/pkg/domain"
	"despachante/pkg/plate"
	"despachante/pkg/store"
)

// AddVehicle registers a vehicle under the user. Plates are stored in the
// Mercosul form; legacy plates are converted.
func (a *App) AddVehicle(ctx context.Context, userID, rawPlate, nickname string) (domain.Vehicle, error) {
	nickname = strings.TrimSpace(nickname)
	if strings.TrimSpace(rawPlate) == "" || nickname == "" {
		return domain.Vehicle{}, ErrVehicleFieldsRequired
	}
	p, err := plate.Canonical(rawPlate)
	if err != nil {
		return domain.Vehicle{}, ErrInvalidPlate
	}
	v := domain.Vehicle{
		ID:        util.NewID(),
		UserID:    userID,
		Plate:     p,
		Nickname:  nickname,
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.AddVehicle(ctx, v); err != nil {
		if errors.Is(err, store.ErrVehicleExists) {
			return domain.Vehicle{}, ErrVehicleExists
		}
		return domain.Vehicle{}, fmt.Errorf("add vehicle: %w", err)
	}
	return v, nil
}

func (a *App) ListVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	vehicles, err := a.store.ListVehicles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return vehicles, nil
}

// DeleteVehicle removes one of the user's vehicles.
func (a *App) DeleteVehicle(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrVehicleNotFound
	}
	deleted, err := a.store.DeleteVehicle(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if !deleted {
		return ErrVehicleNotFound
	}
	return nil
}
