package models

import (
	"time"

	"github.com/google/uuid"
)

type ObjectType struct {
	ID          uuid.UUID `json:"id"`
	DomainID    uuid.UUID `json:"domain_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// FacilityObject is the physical object a task or check inspects.
type FacilityObject struct {
	ID           uuid.UUID `json:"id"`
	DomainID     uuid.UUID `json:"domain_id"`
	ObjectTypeID uuid.UUID `json:"object_type_id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
}

type InspectionParameter struct {
	ID            uuid.UUID `json:"id"`
	DomainID      uuid.UUID `json:"domain_id"`
	ObjectTypeID  uuid.UUID `json:"object_type_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	ExpectedValue string    `json:"expected_value"`
	MinValue      *float64  `json:"min_value"`
	MaxValue      *float64  `json:"max_value"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
