package services

import (
	"strconv"
	"strings"

	"rental-parser/models"
	"rental-parser/scraper/fields"
	"rental-parser/utils"
)

// Normalizer transforms RawListings into canonical Apartments.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeAll maps every record, preserving order.
func (n *Normalizer) NormalizeAll(raw []*models.RawListing) []*models.Apartment {
	result := make([]*models.Apartment, 0, len(raw))
	var partial int
	for _, r := range raw {
		if len(r.MissingFields) > 0 {
			partial++
			n.logger.Debug("[normalizer] %s:%s missing %s", r.Source, r.ExternalID, strings.Join(r.MissingFields, ", "))
		}
		result = append(result, n.Normalize(r))
	}

	n.logger.Info("[normalizer] Normalized %d listings (%d with missing fields)", len(result), partial)
	return result
}

// Normalize maps one record. Unparseable price becomes 0; every other
// unparseable number becomes null.
func (n *Normalizer) Normalize(r *models.RawListing) *models.Apartment {
	a := &models.Apartment{
		ExternalID: strings.TrimSpace(r.ExternalID),
		Source:     r.Source,
		URL:        strings.TrimSpace(r.URL),

		Price:       parsePrice(r.Price),
		Area:        parseDecimal(r.Area),
		Rooms:       parseInt(r.Rooms),
		Floor:       parseInt(r.Floor),
		TotalFloors: parseInt(r.TotalFloors),

		MetroStation:   normaliseText(r.MetroStation),
		MetroDistance:  normaliseText(r.MetroDistance),
		MetroTransport: normaliseText(r.MetroTransport),
		Address:        normaliseText(r.Address),
		District:       normaliseText(r.District),

		Description: normaliseText(r.Description),
		Photos:      fields.MergePhotos(r.Photos),

		ContactName:  normaliseText(r.ContactName),
		ContactPhone: normaliseText(r.ContactPhone),
		IsOwner:      r.IsOwner == nil || *r.IsOwner,

		BuildingYear: parseYear(r.BuildingYear),
		BuildingType: parseBuildingType(r.BuildingType),
		LivingArea:   parseDecimal(r.LivingArea),
		KitchenArea:  parseDecimal(r.KitchenArea),

		Deposit:           parseAmount(r.Deposit),
		Commission:        parseAmount(r.Commission),
		UtilitiesIncluded: r.UtilitiesIncluded,
		RentalPeriod:      normaliseText(r.RentalPeriod),
		PublishedDate:     normaliseText(r.PublishedDate),

		HasFurniture:  r.Amenities.Furniture,
		HasAppliances: r.Amenities.Appliances,
		HasInternet:   r.Amenities.Internet,
		HasParking:    r.Amenities.Parking,
		HasElevator:   r.Amenities.Elevator,
		HasBalcony:    r.Amenities.Balcony,
		Features:      r.Amenities.Tags(),
	}

	// Every search URL filters on "no commission"; a stated non-zero fee overrides it.
	a.NoCommission = a.Commission == nil || *a.Commission == 0

	a.Title = normaliseText(r.Title)
	if a.Title == "" {
		a.Title = fallbackTitle(a.Area, a.Rooms)
	}
	return a
}

// fallbackTitle builds e.g. "45.5 м² 2-комн." from the parsed numbers.
func fallbackTitle(area *float64, rooms *int) string {
	var parts []string
	if area != nil {
		parts = append(parts, strconv.FormatFloat(*area, 'f', -1, 64)+" м²")
	}
	if rooms != nil {
		parts = append(parts, strconv.Itoa(*rooms)+"-комн.")
	} else {
		parts = append(parts, "квартира")
	}
	return strings.Join(parts, " ")
}

// parsePrice keeps only digits; no digits means 0.
// Examples:
//
//	"85 000 ₽/мес" → 85000
//	"Цена договорная" → 0
func parsePrice(raw string) float64 {
	digits := fields.PriceDigits(raw)
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// parseDecimal reads "45,5" or "45.5"; non-positive or unparseable is nil.
func parseDecimal(raw string) *float64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// parseInt keeps 0, which is meaningful for rooms (studio).
func parseInt(raw string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

func parseYear(raw string) *int {
	y := parseInt(raw)
	if y == nil || *y < 1800 || *y > 2100 {
		return nil
	}
	return y
}

// parseAmount reads a money amount that may legitimately be 0.
func parseAmount(raw string) *float64 {
	digits := fields.PriceDigits(raw)
	if digits == "" {
		return nil
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseBuildingType(raw string) models.BuildingType {
	switch t := models.BuildingType(strings.ToLower(strings.TrimSpace(raw))); t {
	case models.BuildingPanel, models.BuildingBrick, models.BuildingMonolith, models.BuildingBlock:
		return t
	}
	if t := fields.DetectBuildingType(raw); t != "" {
		return t
	}
	return models.BuildingUnknown
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return fields.CollapseSpace(s)
}
