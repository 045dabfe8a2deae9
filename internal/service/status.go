package service

import (
	"context"
	"fmt"
	"time"

	"baro-tracker-api/internal/model"
	"baro-tracker-api/internal/repository"
)

// StatusService reads and writes the single vendor status document.
type StatusService struct {
	status  repository.StatusRepository
	catalog repository.CatalogRepository
}

// NewStatusService creates a status service.
func NewStatusService(status repository.StatusRepository, catalog repository.CatalogRepository) *StatusService {
	return &StatusService{status: status, catalog: catalog}
}

// Upsert replaces the stored status.
func (s *StatusService) Upsert(ctx context.Context, st model.VendorStatus) error {
	if st.InventoryIDs == nil {
		st.InventoryIDs = []string{}
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	if err := s.status.UpsertStatus(ctx, st); err != nil {
		return fmt.Errorf("failed to store vendor status: %w", err)
	}
	return nil
}

// Get returns the stored status, or nil when none exists.
func (s *StatusService) Get(ctx context.Context) (*model.VendorStatus, error) {
	return s.status.GetStatus(ctx)
}

// Current returns the status with its inventory expanded. Items come back in
// the stored inventory order; ids no longer in the catalog are skipped.
func (s *StatusService) Current(ctx context.Context) (*model.CurrentView, error) {
	st, err := s.status.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor status: %w", err)
	}
	view := &model.CurrentView{Items: []*model.CatalogItem{}}
	if st == nil {
		return view, nil
	}

	view.IsActive = st.IsActive
	view.Activation = st.Activation
	view.Expiry = st.Expiry
	view.Location = st.Location
	if !st.IsActive || len(st.InventoryIDs) == 0 {
		return view, nil
	}

	items, err := s.catalog.FindByIDs(ctx, st.InventoryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory items: %w", err)
	}
	byID := make(map[string]*model.CatalogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for _, id := range st.InventoryIDs {
		if item, ok := byID[id]; ok {
			view.Items = append(view.Items, item)
		}
	}
	return view, nil
}
