// Package yandex reads rental listings from realty.yandex.ru search results.
package yandex

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rental-parser/models"
	"rental-parser/scraper"
	"rental-parser/scraper/fields"
)

const siteURL = "https://realty.yandex.ru"

var (
	idRegexp     = regexp.MustCompile(`/offer/(\d+)`)
	digitsRegexp = regexp.MustCompile(`^\d+$`)
	roomsRegexps = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*-?\s*комнат`),
		fields.RoomsShortRegex,
		fields.RoomsRegexp,
	}

	linkChain = fields.Chain{
		fields.Attr(`a.OffersSerpItem__link`, "href"),
		fields.Attr(`a[href*="/offer/"]`, "href"),
	}
	titleChain = fields.Chain{
		fields.Text(`div.OffersSerpItem__generalInfo > div.OffersSerpItem__generalInfoInnerContainer > a > span > span`),
		fields.Text(`.OffersSerpItem__title`),
	}
	priceChain = fields.Chain{priceSpan}
	metroChain = fields.Chain{
		fields.Text(`span.MetroStation__title`),
		fields.Text(`a[data-test="LinkedMetroWithTimeLink"] span`),
	}
	addressChain     = fields.Chain{fields.Text(`div[class*="AddressWithGeoLinks__addressContainer"]`)}
	descriptionChain = fields.Chain{fields.Text(`p.OffersSerpItem__description`)}
)

// priceSpan prefers the first span of the price block when it is all
// digits, else any all-digit span of at least four characters.
func priceSpan(sel *goquery.Selection) string {
	spans := sel.Find(`div[class*="OffersSerpItem__price"]`).First().Find("span")

	if raw := digitsOnly(spans.First()); raw != "" {
		return raw
	}

	var price string
	spans.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if raw := digitsOnly(s); len(raw) >= 4 {
			price = raw
			return false
		}
		return true
	})
	return price
}

// digitsOnly returns the span text without spaces if nothing but digits remain.
func digitsOnly(s *goquery.Selection) string {
	raw := strings.ReplaceAll(fields.CollapseSpace(s.Text()), " ", "")
	if !digitsRegexp.MatchString(raw) {
		return ""
	}
	return raw
}

// Adapter implements scraper.Adapter for yandex.
type Adapter struct {
	baseURL string
}

// New creates an adapter paging over baseURL.
func New(baseURL string) *Adapter {
	return &Adapter{baseURL: baseURL}
}

func (a *Adapter) Source() models.Source { return models.SourceYandex }

func (a *Adapter) PageURL(page int) string { return scraper.PagedURL(a.baseURL, "page", page) }

func (a *Adapter) CardSelectors() []string {
	return []string{`div.OffersSerp > ol > li`, `li.OffersSerp__list-item`}
}

// ExtractCard reads one search result item.
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
	}

	rec.Area = fields.Area(rec.Title)
	rec.Rooms = fields.Rooms(rec.Title, fields.StudioRegexp, roomsRegexps...)
	rec.Floor, rec.TotalFloors = fields.FloorPair(rec.Title, fields.FloorOfRegexp, fields.FloorRegexp)
	rec.Price = card.String("price", priceChain)

	rec.MetroStation = card.String("metro_station", metroChain)
	rec.Address = card.String("address", addressChain)
	rec.Description = card.String("description", descriptionChain)

	rec.Photos = fields.ImageSources(card.Sel,
		`img.Gallery__activeImg, img.Gallery__item, img.OffersSerpItem__images-bottom-img`,
		[]string{"src", "data-src"}, "avatars.mds.yandex.net", "get-realty")

	rec.BuildingType = string(fields.DetectBuildingType(rec.Description))
	rec.Amenities = fields.DetectAmenities(rec.Title, rec.Description)

	rec.MissingFields = card.Missing()
	return rec, nil
}
