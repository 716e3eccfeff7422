// Package cian reads rental listings from cian.ru search results.
package cian

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rental-parser/models"
	"rental-parser/scraper"
	"rental-parser/scraper/fields"
)

const siteURL = "https://www.cian.ru"

var (
	idRegexp        = regexp.MustCompile(`/rent/flat/(\d+)`)
	floorInfoRegexp = regexp.MustCompile(`(\d+)\s*из\s*(\d+)`)

	linkChain = fields.Chain{
		fields.Attr(`a[href*="/rent/flat/"]`, "href"),
		fields.Attr(`div[data-name="LinkArea"] a[href]`, "href"),
	}
	titleChain       = fields.Chain{fields.Text(`span[data-mark="OfferTitle"]`)}
	subtitleChain    = fields.Chain{fields.Text(`span[data-mark="OfferSubtitle"]`)}
	priceChain       = fields.Chain{fields.Text(`span[data-mark="MainPrice"]`)}
	metroChain       = fields.Chain{specialGeo}
	addressChain     = fields.Chain{fields.JoinedText(`a[data-name="GeoLabel"]`, ", ")}
	descriptionChain = fields.Chain{fields.Text(`div[data-name="Description"] p`)}

	detailDescriptionChain = fields.Chain{fields.Text(`[data-name="Description"]`)}
	detailPhoneChain       = fields.Chain{fields.Attr(`[data-name="PhoneButton"]`, "href")}
	detailOwnerChain       = fields.Chain{fields.Text(`[data-name="OwnerInfo"]`)}
	detailFloorChain       = fields.Chain{fields.Text(`[data-name="FloorInfo"]`)}
)

// specialGeo keeps the station name, which ends at the first comma or bullet.
func specialGeo(sel *goquery.Selection) string {
	text := fields.CollapseSpace(sel.Find(`div[data-name="SpecialGeo"]`).First().Text())
	if i := strings.IndexAny(text, ",•"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// Adapter implements scraper.Adapter and scraper.Enricher for cian.
type Adapter struct {
	baseURL string
}

// New creates an adapter paging over baseURL.
func New(baseURL string) *Adapter {
	return &Adapter{baseURL: baseURL}
}

func (a *Adapter) Source() models.Source { return models.SourceCian }

func (a *Adapter) PageURL(page int) string { return scraper.PagedURL(a.baseURL, "p", page) }

func (a *Adapter) CardSelectors() []string {
	return []string{`article[data-name="CardComponent"]`, `[data-name="CardComponent"]`}
}

// ExtractCard reads one CardComponent.
func (a *Adapter) ExtractCard(card *fields.Card) (*models.RawListing, error) {
	href := card.String("url", linkChain)
	id := fields.FirstSubmatch(href, idRegexp)
	if id == "" {
		return nil, fmt.Errorf("%w: link %q", scraper.ErrMissingID, href)
	}

	rec := &models.RawListing{
		ExternalID: id,
		URL:        fields.AbsoluteURL(siteURL, href),
		Title:      card.String("title", titleChain),
		Subtitle:   card.String("subtitle", subtitleChain),
	}

	rec.Rooms = fields.Rooms(rec.Subtitle, fields.StudioRegexp, fields.RoomsRegexp)
	rec.Area = fields.Area(rec.Subtitle)
	rec.Floor, rec.TotalFloors = fields.FloorPair(rec.Subtitle)
	rec.Price = fields.PriceDigits(card.String("price", priceChain))

	rec.MetroStation = card.String("metro_station", metroChain)
	rec.Address = card.String("address", addressChain)
	rec.District = district(rec.Address)

	rec.Photos = fields.ImageSources(card.Sel, `div[data-name="Gallery"] img[src*="images.cdn-cian.ru"]`,
		[]string{"src"}, "images.cdn-cian.ru")

	rec.Description = card.String("description", descriptionChain)
	if rec.Title == "" {
		rec.Title = rec.Subtitle
	}

	full := fields.Coalesce(rec.Description, rec.Subtitle) + " " + rec.Title
	rec.BuildingYear = fields.BuildingYear(full)
	rec.BuildingType = string(fields.DetectBuildingType(full))
	rec.LivingArea = fields.LivingArea(full)
	rec.KitchenArea = fields.KitchenArea(full)
	rec.Amenities = fields.DetectAmenities(rec.Title, rec.Description)
	rec.Description = fields.Coalesce(rec.Description, rec.Subtitle)

	rec.MissingFields = card.Missing()
	return rec, nil
}

// district prefers the "р-н" part of the address, else its second part.
func district(address string) string {
	parts := strings.Split(address, ",")
	for _, p := range parts {
		if strings.Contains(p, "р-н") {
			return strings.TrimSpace(strings.Replace(p, "р-н", "", 1))
		}
	}
	if len(parts) > 1 {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Enrich overlays the offer page's description, contact and floor count.
func (a *Adapter) Enrich(rec *models.RawListing, detail *fields.Card) *models.RawListing {
	out := *rec

	out.Description = fields.Coalesce(detail.String("description", detailDescriptionChain), rec.Description)
	out.ContactPhone = fields.Coalesce(fields.TrimTel(detail.String("contact_phone", detailPhoneChain)), rec.ContactPhone)
	out.ContactName = fields.Coalesce(detail.String("contact_name", detailOwnerChain), rec.ContactName)

	if m := floorInfoRegexp.FindStringSubmatch(detail.String("floor_info", detailFloorChain)); m != nil {
		out.Floor, out.TotalFloors = m[1], m[2]
	}

	out.Amenities = rec.Amenities.Or(fields.DetectAmenities(out.Description))
	return &out
}
