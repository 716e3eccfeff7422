package models

import (
	"fmt"
	"time"
)

// Source names one of the supported marketplaces.
type Source string

const (
	SourceCian   Source = "cian"
	SourceAvito  Source = "avito"
	SourceYandex Source = "yandex"
)

// Sources lists every supported marketplace in a stable order.
var Sources = []Source{SourceCian, SourceAvito, SourceYandex}

// ParseSource validates a marketplace name against the closed set of sources.
func ParseSource(name string) (Source, error) {
	for _, s := range Sources {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", name)
}

// RawListing holds one card as the marketplace presented it. Numeric-looking
// values are kept as the text the extraction regexes captured; the Normalizer
// owns type coercion. Adapters never mutate a record after returning it.
type RawListing struct {
	Source     Source
	ExternalID string
	URL        string

	Title       string
	Subtitle    string
	Description string

	Price       string
	Area        string
	Rooms       string
	Floor       string
	TotalFloors string
	LivingArea  string
	KitchenArea string

	MetroStation   string
	MetroDistance  string
	MetroTransport string
	Address        string
	District       string

	Photos       []string
	ContactName  string
	ContactPhone string
	IsOwner      *bool

	BuildingYear string
	BuildingType string

	Amenities Amenities

	Deposit           string
	Commission        string
	UtilitiesIncluded bool
	RentalPeriod      string
	PublishedDate     string

	// MissingFields lists fields whose every extraction strategy came up empty.
	MissingFields []string

	ScrapedAt time.Time
}

// Apartment is the canonical, source-agnostic record sent downstream.
// (Source, ExternalID) identifies it across runs.
type Apartment struct {
	ExternalID string `json:"external_id"`
	Source     Source `json:"source"`
	URL        string `json:"url"`

	Price       float64  `json:"price"`
	Area        *float64 `json:"area"`
	Rooms       *int     `json:"rooms"`
	Floor       *int     `json:"floor"`
	TotalFloors *int     `json:"total_floors"`

	MetroStation   string `json:"metro_station"`
	MetroDistance  string `json:"metro_distance,omitempty"`
	MetroTransport string `json:"metro_transport,omitempty"`
	Address        string `json:"address"`
	District       string `json:"district"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Photos      []string `json:"photos"`

	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	IsOwner      bool   `json:"is_owner"`
	NoCommission bool   `json:"no_commission"`

	BuildingYear *int         `json:"building_year"`
	BuildingType BuildingType `json:"building_type"`
	LivingArea   *float64     `json:"living_area"`
	KitchenArea  *float64     `json:"kitchen_area"`

	Deposit           *float64 `json:"deposit"`
	Commission        *float64 `json:"commission"`
	UtilitiesIncluded bool     `json:"utilities_included"`
	RentalPeriod      string   `json:"rental_period,omitempty"`
	PublishedDate     string   `json:"published_date,omitempty"`

	HasFurniture  bool `json:"has_furniture"`
	HasAppliances bool `json:"has_appliances"`
	HasInternet   bool `json:"has_internet"`
	HasParking    bool `json:"has_parking"`
	HasElevator   bool `json:"has_elevator"`
	HasBalcony    bool `json:"has_balcony"`

	Features []string `json:"features"`
}

// Key returns the identity used for deduplication and downstream upserts.
func (a *Apartment) Key() string {
	return string(a.Source) + ":" + a.ExternalID
}

// Amenities are the feature flags matched against listing text.
type Amenities struct {
	Furniture  bool
	Appliances bool
	Internet   bool
	Parking    bool
	Elevator   bool
	Balcony    bool
}

// Feature tags in vocabulary order.
const (
	TagFurniture  = "мебель"
	TagAppliances = "техника"
	TagInternet   = "интернет"
	TagParking    = "парковка"
	TagElevator   = "лифт"
	TagBalcony    = "балкон"
)

// Tags returns the tags of the set flags, always in vocabulary order.
func (a Amenities) Tags() []string {
	tags := make([]string, 0, 6)
	for _, f := range []struct {
		on  bool
		tag string
	}{
		{a.Furniture, TagFurniture},
		{a.Appliances, TagAppliances},
		{a.Internet, TagInternet},
		{a.Parking, TagParking},
		{a.Elevator, TagElevator},
		{a.Balcony, TagBalcony},
	} {
		if f.on {
			tags = append(tags, f.tag)
		}
	}
	return tags
}

// Or merges two flag sets; a flag is set if either side has it.
func (a Amenities) Or(b Amenities) Amenities {
	return Amenities{
		Furniture:  a.Furniture || b.Furniture,
		Appliances: a.Appliances || b.Appliances,
		Internet:   a.Internet || b.Internet,
		Parking:    a.Parking || b.Parking,
		Elevator:   a.Elevator || b.Elevator,
		Balcony:    a.Balcony || b.Balcony,
	}
}

// BuildingType is the coarse wall-material classification.
type BuildingType string

const (
	BuildingPanel    BuildingType = "panel"
	BuildingBrick    BuildingType = "brick"
	BuildingMonolith BuildingType = "monolith"
	BuildingBlock    BuildingType = "block"
	BuildingUnknown  BuildingType = "unknown"
)

// CrawlResult is the summary returned to the caller of a crawl.
// New and Updated come from the downstream acknowledgement only.
type CrawlResult struct {
	JobID    string        `json:"-"`
	Source   Source        `json:"-"`
	Found    int           `json:"found"`
	New      int           `json:"new"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"-"`
	Duration time.Duration `json:"-"`
	Err      error         `json:"-"`
}

// Failed reports whether the crawl ended in an unrecovered error.
func (r *CrawlResult) Failed() bool { return r.Err != nil }

// DurationString renders the duration the way the control surface reports it, e.g. "12.34s".
func (r *CrawlResult) DurationString() string {
	return fmt.Sprintf("%.2fs", r.Duration.Seconds())
}

// SubmitResult is the downstream acknowledgement for one batch.
type SubmitResult struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
}

// Stats is the aggregate view over stored apartments.
type Stats struct {
	Total    int            `json:"total"`
	BySource map[string]int `json:"by_source"`
	AvgPrice float64        `json:"avg_price"`
	MinPrice float64        `json:"min_price"`
	MaxPrice float64        `json:"max_price"`
	AvgArea  float64        `json:"avg_area"`
}
