package fields

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"rental-parser/models"
)

var (
	nonDigitRegexp = regexp.MustCompile(`\D+`)

	// Generic patterns; adapters pass their own where the marketplace differs.
	StudioRegexp    = regexp.MustCompile(`(?i)студи`)
	RoomsRegexp     = regexp.MustCompile(`(?i)(\d+)\s*-?\s*комн`)
	RoomsShortRegex = regexp.MustCompile(`(?i)(\d+)\s*-?\s*к\.`)
	AreaRegexp      = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*м²`)
	FloorRegexp     = regexp.MustCompile(`(?i)(\d+)\s*/\s*(\d+)\s*эт`)
	FloorOfRegexp   = regexp.MustCompile(`(?i)(\d+)\s*(?:этаж\s*)?из\s*(\d+)`)

	buildingYearRegexps = []*regexp.Regexp{
		regexp.MustCompile(`(?i)построен[а]?\s*в\s*(\d{4})`),
		regexp.MustCompile(`(?i)((?:19|20)\d{2})\s*г(?:\.|од|ода)?`),
	}
	livingAreaRegexps = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:жилая|жил\.?)\s*площадь[:\s]+(\d+(?:[.,]\d+)?)`),
		regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*м²\s*жил`),
	}
	kitchenAreaRegexps = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:кухня|кухн\.?)\s*[:\s]+(\d+(?:[.,]\d+)?)`),
		regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*м²\s*кух`),
	}
	metroDistanceRegexp = regexp.MustCompile(`(\d+(?:[–-]\d+)?)\s*(мин|минут)`)
	metroTransportRegex = regexp.MustCompile(`(?i)(пешком|транспортом|на машине)`)
	photoWidthSuffix    = regexp.MustCompile(`/\d+w$`)
)

// FirstSubmatch returns the first capture group of the first regexp that matches.
func FirstSubmatch(text string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); len(m) >= 2 {
			return m[1]
		}
	}
	return ""
}

// Rooms returns the room count as text: "0" for a studio, "" when unknown.
func Rooms(text string, studio *regexp.Regexp, patterns ...*regexp.Regexp) string {
	if studio != nil && studio.MatchString(text) {
		return "0"
	}
	return FirstSubmatch(text, patterns...)
}

// Area returns the decimal preceding the area unit.
func Area(text string, patterns ...*regexp.Regexp) string {
	if len(patterns) == 0 {
		patterns = []*regexp.Regexp{AreaRegexp}
	}
	return FirstSubmatch(text, patterns...)
}

// FloorPair returns floor and total floors from a "floor/total"-style pattern.
func FloorPair(text string, patterns ...*regexp.Regexp) (floor, total string) {
	if len(patterns) == 0 {
		patterns = []*regexp.Regexp{FloorRegexp}
	}
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) >= 3 {
			return m[1], m[2]
		}
	}
	return "", ""
}

// PriceDigits strips everything but digits; "" when the text has none.
func PriceDigits(text string) string {
	return nonDigitRegexp.ReplaceAllString(text, "")
}

// BuildingYear finds a construction year in free text.
func BuildingYear(text string) string {
	return FirstSubmatch(text, buildingYearRegexps...)
}

// LivingArea finds the living area in free text.
func LivingArea(text string) string {
	return FirstSubmatch(text, livingAreaRegexps...)
}

// KitchenArea finds the kitchen area in free text.
func KitchenArea(text string) string {
	return FirstSubmatch(text, kitchenAreaRegexps...)
}

// MetroDistance extracts "N мин"-style distances.
func MetroDistance(text string) string {
	return metroDistanceRegexp.FindString(text)
}

// MetroTransport extracts how the metro distance is travelled.
func MetroTransport(text string) string {
	return strings.ToLower(FirstSubmatch(text, metroTransportRegex))
}

// DetectBuildingType returns the wall-material marker found in text, in the
// priority order panel, brick, monolith, block.
func DetectBuildingType(text string) models.BuildingType {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "панел"):
		return models.BuildingPanel
	case strings.Contains(t, "кирпич"):
		return models.BuildingBrick
	case strings.Contains(t, "монолит"):
		return models.BuildingMonolith
	case strings.Contains(t, "блочн"):
		return models.BuildingBlock
	}
	return ""
}

var amenityVocabulary = []struct {
	set     func(*models.Amenities)
	needles []string
}{
	{func(a *models.Amenities) { a.Furniture = true }, []string{"мебел", "меблирован"}},
	{func(a *models.Amenities) { a.Appliances = true }, []string{"техник", "холодильник", "стиральн", "посудомоечн", "микроволнов", "кондиционер", "телевизор", "бойлер"}},
	{func(a *models.Amenities) { a.Internet = true }, []string{"интернет", "wi-fi", "wifi"}},
	{func(a *models.Amenities) { a.Parking = true }, []string{"парковк", "гараж", "стоянк"}},
	{func(a *models.Amenities) { a.Elevator = true }, []string{"лифт"}},
	{func(a *models.Amenities) { a.Balcony = true }, []string{"балкон", "лоджи", "терраса"}},
}

// DetectAmenities matches the fixed vocabulary case-insensitively against
// the concatenation of texts.
func DetectAmenities(texts ...string) models.Amenities {
	full := strings.ToLower(strings.Join(texts, " "))
	var a models.Amenities
	for _, v := range amenityVocabulary {
		for _, n := range v.needles {
			if strings.Contains(full, n) {
				v.set(&a)
				break
			}
		}
	}
	return a
}

// AbsoluteURL resolves href against base; unparsable input is returned as is.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// PhotoURL normalizes an image src: protocol-relative URLs get https, the
// query and any "/208w" size suffix are dropped. Returns "" for non-http input.
func PhotoURL(src string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return ""
	}
	if i := strings.IndexByte(src, '?'); i >= 0 {
		src = src[:i]
	}
	src = photoWidthSuffix.ReplaceAllString(src, "")
	switch {
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return src
	}
	return ""
}

// CollapseSpace trims and collapses internal whitespace, including NBSP.
func CollapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
