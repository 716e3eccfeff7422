package yandex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rental-parser/models"
	"rental-parser/scraper"
	"rental-parser/scraper/fields"
)

const itemHTML = `
<li class="OffersSerp__list-item">
  <div class="OffersSerpItem__gallery">
    <img class="Gallery__activeImg" src="//avatars.mds.yandex.net/get-realty/2935/offer.abc/main">
    <img class="Gallery__item" src="https://avatars.mds.yandex.net/get-realty/2935/offer.def/main">
    <img class="Gallery__item" src="https://example.com/tracker.gif">
  </div>
  <div class="OffersSerpItem__generalInfo">
    <div class="OffersSerpItem__generalInfoInnerContainer">
      <a class="OffersSerpItem__link" href="/offer/7712345678901234567/"><span><span>38 м², 1-комнатная квартира, 5 этаж из 16</span></span></a>
    </div>
  </div>
  <div class="OffersSerpItem__price PriceWithDiscount__container--QehfS">
    <div><div><div><div><span>55&nbsp;000</span><span>₽ в месяц</span></div></div></div></div>
  </div>
  <span class="MetroStation__title">Тульская</span>
  <div class="AddressWithGeoLinks__addressContainer--4jzfZ">Москва, Большая Тульская улица, 2</div>
  <p class="OffersSerpItem__description">Панельный дом, есть интернет и парковка.</p>
</li>`

func TestExtractCard(t *testing.T) {
	card, err := fields.NewCard(itemHTML)
	require.NoError(t, err)

	rec, err := New("https://realty.yandex.ru/moskva/snyat/kvartira/").ExtractCard(card)
	require.NoError(t, err)

	require.Equal(t, "7712345678901234567", rec.ExternalID)
	require.Equal(t, "https://realty.yandex.ru/offer/7712345678901234567/", rec.URL)
	require.Equal(t, "1", rec.Rooms)
	require.Equal(t, "38", rec.Area)
	require.Equal(t, "5", rec.Floor)
	require.Equal(t, "16", rec.TotalFloors)
	require.Equal(t, "55000", rec.Price)
	require.Equal(t, "Тульская", rec.MetroStation)
	require.Equal(t, "Москва, Большая Тульская улица, 2", rec.Address)
	require.Equal(t, string(models.BuildingPanel), rec.BuildingType)
	require.Equal(t, []string{
		"https://avatars.mds.yandex.net/get-realty/2935/offer.abc/main",
		"https://avatars.mds.yandex.net/get-realty/2935/offer.def/main",
	}, rec.Photos)
	require.Equal(t, models.Amenities{Internet: true, Parking: true}, rec.Amenities)
	require.Empty(t, rec.MissingFields)
}

func TestPriceFallsBackToLongDigitSpan(t *testing.T) {
	card, err := fields.NewCard(`<li>
		<a href="/offer/1/">x</a>
		<div class="OffersSerpItem__price"><span>от</span><span>1</span><span>72 500</span></div>
	</li>`)
	require.NoError(t, err)

	rec, err := New("").ExtractCard(card)
	require.NoError(t, err)
	require.Equal(t, "72500", rec.Price)
}

func TestExtractCardStudio(t *testing.T) {
	card, err := fields.NewCard(`<li><a class="OffersSerpItem__link" href="/offer/9/"><span class="OffersSerpItem__title">Студия 22 м², 3 этаж из 9</span></a></li>`)
	require.NoError(t, err)

	rec, err := New("").ExtractCard(card)
	require.NoError(t, err)
	require.Equal(t, "0", rec.Rooms)
	require.Equal(t, "3", rec.Floor)
	require.Equal(t, "9", rec.TotalFloors)
	require.Contains(t, rec.MissingFields, "price")
}

func TestExtractCardWithoutOfferLink(t *testing.T) {
	card, err := fields.NewCard(`<li><a href="/newbuildings/">ЖК</a></li>`)
	require.NoError(t, err)

	_, err = New("").ExtractCard(card)
	require.ErrorIs(t, err, scraper.ErrMissingID)
}

func TestPageURL(t *testing.T) {
	a := New("https://realty.yandex.ru/moskva/snyat/kvartira/bez-komissii/")
	require.Equal(t, "https://realty.yandex.ru/moskva/snyat/kvartira/bez-komissii/", a.PageURL(1))
	require.Equal(t, "https://realty.yandex.ru/moskva/snyat/kvartira/bez-komissii/?page=2", a.PageURL(2))
}

func TestExtractCardSlashFloorPattern(t *testing.T) {
	card, err := fields.NewCard(`<li><a class="OffersSerpItem__link" href="/offer/12/"><span class="OffersSerpItem__title">2-комн., 45.5 м², 3/9 этаж</span></a></li>`)
	require.NoError(t, err)

	rec, err := New("").ExtractCard(card)
	require.NoError(t, err)
	require.Equal(t, "2", rec.Rooms)
	require.Equal(t, "45.5", rec.Area)
	require.Equal(t, "3", rec.Floor)
	require.Equal(t, "9", rec.TotalFloors)
}
