package public

import (
	"github.com/leakwatch/blockchain/business/core/leak"
	"github.com/leakwatch/blockchain/foundation/blockchain/database"
)

type newReport struct {
	Recipient   string  `json:"recipient" validate:"required,max=128"`
	ZoneID      string  `json:"zone_id" validate:"max=64"`
	Location    string  `json:"location" validate:"max=256"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Description string  `json:"description" validate:"max=2048"`
	Photo       string  `json:"photo" validate:"max=512"`
}

func (nr newReport) toCitizenReport() database.CitizenReport {
	return database.CitizenReport{
		Recipient:   nr.Recipient,
		ZoneID:      nr.ZoneID,
		Location:    nr.Location,
		Latitude:    nr.Latitude,
		Longitude:   nr.Longitude,
		Description: nr.Description,
		Photo:       nr.Photo,
	}
}

type reportResponse struct {
	Message string         `json:"message"`
	Block   database.Block `json:"block"`
	Reward  string         `json:"reward"`
}

type reading struct {
	WaterSupplied *float64 `json:"water_supplied_litres" validate:"required"`
	WaterConsumed *float64 `json:"water_consumed_litres" validate:"required"`
	FlowRate      *float64 `json:"flowrate_lps" validate:"required"`
	Pressure      *float64 `json:"pressure_psi" validate:"required"`
}

func (r reading) toReading() leak.Reading {
	return leak.Reading{
		WaterSupplied: *r.WaterSupplied,
		WaterConsumed: *r.WaterConsumed,
		FlowRate:      *r.FlowRate,
		Pressure:      *r.Pressure,
	}
}

type ledger struct {
	Ledger []database.Block `json:"ledger"`
}

type verification struct {
	Valid  bool   `json:"valid"`
	Length int    `json:"length"`
	Error  string `json:"error,omitempty"`
}

type rewards struct {
	Recipient string  `json:"recipient,omitempty"`
	Total     float64 `json:"total"`
}
