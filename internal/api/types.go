package api

import (
	"time"

	"github.com/lotwatch/lotsync/internal/model"
)

// APILot is the wire representation of a lot aggregate.
type APILot struct {
	LotID       string `json:"lot_id"`
	Available   int    `json:"available"`
	Occupied    int    `json:"occupied"`
	Reserved    int    `json:"reserved"`
	Maintenance int    `json:"maintenance"`
	Total       int    `json:"total"`
}

// ToModel converts an API lot to the domain model.
func (l APILot) ToModel() model.LotAggregate {
	return model.LotAggregate{
		LotID:       l.LotID,
		Available:   l.Available,
		Occupied:    l.Occupied,
		Reserved:    l.Reserved,
		Maintenance: l.Maintenance,
		Total:       l.Total,
	}
}

// APISpot is the wire representation of a parking spot.
type APISpot struct {
	SpotID    string    `json:"spot_id"`
	LotID     string    `json:"lot_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToModel converts an API spot to the domain model.
func (s APISpot) ToModel() model.Spot {
	return model.Spot{
		ID:          s.SpotID,
		LotID:       s.LotID,
		Status:      model.SpotStatus(s.Status),
		LastUpdated: s.UpdatedAt,
	}
}

// LotsResponse is the paginated response from /lots.
type LotsResponse struct {
	Lots   []APILot `json:"lots"`
	Cursor string   `json:"cursor"`
}

// SpotsResponse is the paginated response from /spots.
type SpotsResponse struct {
	Spots  []APISpot `json:"spots"`
	Cursor string    `json:"cursor"`
}
