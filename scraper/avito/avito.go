// Package avito reads rental listings from avito.ru and enriches them from
// each item's own page.
package avito

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rental-parser/models"
	"rental-parser/scraper"
	"rental-parser/scraper/fields"
)

const siteURL = "https://www.avito.ru"

var (
	idRegexps = []*regexp.Regexp{
		regexp.MustCompile(`/(\d+)$`),
		regexp.MustCompile(`_(\d+)$`),
	}
	roomsRegexps = []*regexp.Regexp{
		fields.RoomsShortRegex,
		regexp.MustCompile(`(?i)(\d+)\s*-?\s*комнат`),
	}
	sliderImageRegexp = regexp.MustCompile(`image-(https?://\S+)`)
	stationRegexp     = regexp.MustCompile(`^[А-ЯЁ][а-яё]+`)
	houseNumberRegexp = regexp.MustCompile(`^\d+[А-Яа-я]`)
	depositRegexp     = regexp.MustCompile(`(?i)залог[:\s]+(\d[\d\s\x{00A0}]*)`)
	yearRegexp        = regexp.MustCompile(`(\d{4})`)
	numberRegexp      = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)
	minutesRegexp     = regexp.MustCompile(`(\d+)\s*(мин|минут)`)

	titleChain       = fields.Chain{fields.Text(`a[data-marker="item-title"]`)}
	linkChain        = fields.Chain{fields.Attr(`a[data-marker="item-title"]`, "href")}
	priceChain       = fields.Chain{fields.Attr(`meta[itemprop="price"]`, "content"), fields.Text(`[data-marker="item-price"]`)}
	metroChain       = fields.Chain{stationSpan}
	addressChain     = fields.Chain{streetAndHouse}
	descriptionChain = fields.Chain{
		fields.Text(`[data-marker="item-line"]`),
		fields.Attr(`meta[itemprop="description"]`, "content"),
		longParagraph,
	}
	locationChain   = fields.Chain{fields.Text(`[data-marker="item-address"] [data-marker="item-location"]`)}
	conditionsChain = fields.Chain{fields.Text(`[data-marker="item-specific-params"]`)}
	dateChain       = fields.Chain{fields.Text(`[data-marker="item-date"]`)}

	detailDescriptionChain = fields.Chain{
		fields.Text(`[data-marker="item-view/item-description"]`),
		fields.Text(`.item-description-text`),
	}
	detailPhoneChain = fields.Chain{
		fields.Attr(`a[data-marker="item-phone-button/phone"]`, "href"),
		fields.Attr(`[data-marker="phone-popup/phone"]`, "href"),
	}
	detailNameChain = fields.Chain{
		fields.Text(`[data-marker="seller-info/name"]`),
		fields.Text(`.seller-info-name`),
	}
	detailMetroChain    = fields.Chain{fields.Text(`[data-marker="item-address/metro"]`)}
	detailDateChain     = fields.Chain{fields.Text(`[data-marker="item-view/item-date"]`)}
	detailDistrictChain = fields.Chain{fields.Text(`[data-marker="item-address/district"]`)}
)

// stationSpan picks the first span in the card location that reads like a
// station name rather than a street, house number or walking time.
func stationSpan(sel *goquery.Selection) string {
	var station string
	sel.Find(`[data-marker="item-address"] [data-marker="item-location"] span`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := fields.CollapseSpace(s.Text())
		if len([]rune(text)) <= 2 || strings.Contains(text, "мин.") ||
			strings.Contains(text, "ул.") || strings.Contains(text, "пр.") ||
			houseNumberRegexp.MatchString(text) || !stationRegexp.MatchString(text) {
			return true
		}
		station = text
		return false
	})
	return station
}

func streetAndHouse(sel *goquery.Selection) string {
	var parts []string
	for _, marker := range []string{"street_link", "house_link"} {
		if t := fields.CollapseSpace(sel.Find(`[data-marker="item-address"] a[data-marker="` + marker + `"]`).First().Text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, ", ")
}

func longParagraph(sel *goquery.Selection) string {
	var desc string
	sel.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := fields.CollapseSpace(s.Text())
		if len([]rune(text)) > 50 && !strings.Contains(text, "₽") && !strings.Contains(text, "м²") {
			desc = text
			return false
		}
		return true
	})
	return desc
}

// Adapter implements scraper.Adapter and scraper.Enricher for avito.
type Adapter struct {
	baseURL string
}

// New creates an adapter paging over baseURL.
func New(baseURL string) *Adapter {
	return &Adapter{baseURL: baseURL}
}

func (a *Adapter) Source() models.Source { return models.SourceAvito }

func (a *Adapter) PageURL(page int) string { return scraper.PagedURL(a.baseURL, "p", page) }

func (a *Adapter) CardSelectors() []string {
	return []string{`[data-marker="item"]`}
}

// externalID reads the numeric id at the end of the item path, falling back
// to the whole last path segment.
func externalID(href string) string {
	p := href
	if u, err := url.Parse(href); err == nil {
		p = u.Path
	} else if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSuffix(p, "/")
	if id := fields.FirstSubmatch(p, idRegexps...); id != "" {
		return id
	}
	if last := path.Base(p); last != "." && last != "/" {
		return last
	}
	return ""
}

// ExtractCard reads one list item.
func (a *Adapter) ExtractCard(card *fields.Card) (*models.RawListing, error) {
	href := card.String("url", linkChain)
	id := ""
	if href != "" {
		id = externalID(href)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: link %q", scraper.ErrMissingID, href)
	}

	rec := &models.RawListing{
		ExternalID: id,
		URL:        fields.AbsoluteURL(siteURL, href),
		Title:      card.String("title", titleChain),
	}

	rec.Area = fields.Area(rec.Title)
	rec.Rooms = fields.Rooms(rec.Title, fields.StudioRegexp, roomsRegexps...)
	rec.Floor, rec.TotalFloors = fields.FloorPair(rec.Title)
	rec.Price = fields.PriceDigits(card.String("price", priceChain))

	rec.MetroStation = card.String("metro_station", metroChain)
	rec.Address = card.String("address", addressChain)
	rec.MetroDistance = fields.MetroDistance(card.String("location", locationChain))
	rec.Description = card.String("description", descriptionChain)
	rec.PublishedDate = card.String("published_date", dateChain)

	rec.Photos = fields.MergePhotos(sliderPhotos(card.Sel), fields.ImageSources(card.Sel,
		`img.photo-slider-image-cD891`, []string{"src", "data-src"}))

	applyListConditions(rec, card.String("conditions", conditionsChain))
	rec.Amenities = fields.DetectAmenities(rec.Title, rec.Description)

	rec.MissingFields = card.Missing()
	return rec, nil
}

// sliderPhotos reads image URLs embedded in slider data-marker attributes.
func sliderPhotos(sel *goquery.Selection) []string {
	var out []string
	sel.Find(`[data-marker^="slider-image/image-"]`).Each(func(_ int, s *goquery.Selection) {
		marker, _ := s.Attr("data-marker")
		if m := sliderImageRegexp.FindStringSubmatch(marker); m != nil {
			if u := fields.PhotoURL(m[1]); u != "" {
				out = append(out, u)
			}
		}
	})
	return out
}

// applyListConditions reads the "Без залога · Без комиссии · ЖКУ" line.
func applyListConditions(rec *models.RawListing, text string) {
	lower := strings.ToLower(text)
	if lower == "" {
		return
	}
	if !strings.Contains(lower, "без залога") {
		if m := depositRegexp.FindStringSubmatch(text); m != nil {
			rec.Deposit = fields.PriceDigits(m[1])
		}
	} else {
		rec.Deposit = "0"
	}
	if strings.Contains(lower, "без комиссии") {
		rec.Commission = "0"
	}
	if strings.Contains(lower, "жку включены") {
		rec.UtilitiesIncluded = true
	}
}

// labelled collects label/value pairs of repeated param blocks, keyed by
// the lower-cased label.
func labelled(sel *goquery.Selection, prefix string) map[string]string {
	out := make(map[string]string)
	sel.Find(`[data-marker="` + prefix + `/item"]`).Each(func(_ int, s *goquery.Selection) {
		label := strings.ToLower(fields.CollapseSpace(s.Find(`[data-marker="` + prefix + `/label"]`).First().Text()))
		value := fields.CollapseSpace(s.Find(`[data-marker="` + prefix + `/value"]`).First().Text())
		if label != "" && value != "" {
			out[strings.TrimSuffix(label, ":")] = value
		}
	})
	return out
}

func lookup(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

// Enrich overlays the item page over the list record: detail values win,
// list values fill the gaps, photos are detail-first.
func (a *Adapter) Enrich(rec *models.RawListing, detail *fields.Card) *models.RawListing {
	out := *rec
	page := detail.Sel

	out.Description = fields.Coalesce(detail.String("description", detailDescriptionChain), rec.Description)
	out.ContactPhone = fields.Coalesce(fields.TrimTel(detail.String("contact_phone", detailPhoneChain)), rec.ContactPhone)
	out.ContactName = fields.Coalesce(detail.String("contact_name", detailNameChain), rec.ContactName)
	if owner := ownerFlag(page); owner != nil {
		out.IsOwner = owner
	}

	detailPhotos := fields.ImageSources(page,
		`div[data-marker="image-frame"] img, .gallery-img img, img[data-marker="image-frame/image"]`,
		[]string{"src", "data-src", "data-url"}, "img.avito.st", "avito.ru")
	detailPhotos = append(detailPhotos, fields.ImageSources(page, `[data-image]`, []string{"data-image"}, "img.avito.st")...)
	out.Photos = fields.MergePhotos(detailPhotos, rec.Photos)

	params := labelled(page, "item-params")
	if v := lookup(params, "год постройки", "год"); v != "" {
		out.BuildingYear = fields.Coalesce(fields.FirstSubmatch(v, yearRegexp), rec.BuildingYear)
	}
	if v := lookup(params, "тип дома", "материал стен"); v != "" {
		out.BuildingType = fields.Coalesce(string(fields.DetectBuildingType(v)), rec.BuildingType)
	}
	if v := lookup(params, "жилая площадь", "жилая"); v != "" {
		out.LivingArea = fields.Coalesce(fields.FirstSubmatch(v, numberRegexp), rec.LivingArea)
	}
	if v := lookup(params, "площадь кухни", "кухня"); v != "" {
		out.KitchenArea = fields.Coalesce(fields.FirstSubmatch(v, numberRegexp), rec.KitchenArea)
	}
	if v := lookup(params, "этаж"); v != "" {
		if floor, total := fields.FloorPair(v, fields.FloorOfRegexp); floor != "" {
			out.Floor, out.TotalFloors = floor, total
		}
	}

	conditions := labelled(page, "item-conditions")
	if v := lookup(conditions, "залог", "депозит"); v != "" {
		out.Deposit = fields.Coalesce(fields.PriceDigits(v), rec.Deposit)
	}
	if v := lookup(conditions, "комиссия"); v != "" {
		lower := strings.ToLower(v)
		if strings.Contains(lower, "нет") || strings.Contains(lower, "без") {
			out.Commission = "0"
		} else {
			out.Commission = fields.Coalesce(fields.FirstSubmatch(v, numberRegexp), rec.Commission)
		}
	}
	out.RentalPeriod = fields.Coalesce(lookup(conditions, "срок аренды", "срок"), rec.RentalPeriod)

	body := strings.ToLower(page.Find("body").Text())
	if strings.Contains(body, "жку включены") || strings.Contains(body, "коммунальные включены") {
		out.UtilitiesIncluded = true
	}

	if metro := detail.String("metro", detailMetroChain); metro != "" {
		station, _, _ := strings.Cut(metro, ",")
		out.MetroStation = fields.Coalesce(strings.TrimSpace(station), rec.MetroStation)
		if m := minutesRegexp.FindStringSubmatch(metro); m != nil {
			out.MetroDistance = m[1] + " " + m[2]
		}
		out.MetroTransport = fields.Coalesce(fields.MetroTransport(metro), "пешком")
	}

	out.PublishedDate = fields.Coalesce(detail.String("published_date", detailDateChain), rec.PublishedDate)
	out.District = fields.Coalesce(detail.String("district", detailDistrictChain), rec.District)
	out.Amenities = rec.Amenities.Or(fields.DetectAmenities(out.Description))
	return &out
}

// ownerFlag classifies the seller; nil when the page says nothing either way.
func ownerFlag(page *goquery.Selection) *bool {
	text := fields.CollapseSpace(page.Find(`[data-marker^="seller-info"]`).Text())
	if text == "" {
		text = page.Find("body").Text()
	}
	var owner bool
	switch {
	case strings.Contains(text, "Собственник"), strings.Contains(text, "Владелец"):
		owner = true
	case strings.Contains(text, "Агент"), strings.Contains(text, "Агентство"):
		owner = false
	default:
		return nil
	}
	return &owner
}
