package avito

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rental-parser/models"
	"rental-parser/scraper"
	"rental-parser/scraper/fields"
)

const itemHTML = `
<div data-marker="item" data-item-id="3456789012">
  <div data-marker="slider-image/image-https://00.img.avito.st/image/1/aaa.jpg?cqp=1"></div>
  <div data-marker="slider-image/image-https://00.img.avito.st/image/1/bbb.jpg"></div>
  <img class="photo-slider-image-cD891" src="https://00.img.avito.st/image/1/aaa.jpg/208w">
  <a data-marker="item-title" href="/moskva/kvartiry/2-k._kvartira_45m_39et._3456789012?context=abc">2-к. квартира, 45 м², 3/9 эт.</a>
  <p data-marker="item-price"><meta itemprop="price" content="65000"><span>65 000 ₽ в месяц</span></p>
  <div data-marker="item-specific-params">Без залога · Без комиссии · ЖКУ включены</div>
  <div data-marker="item-address">
    <div data-marker="item-location">
      <a data-marker="street_link">ул. Ленина</a>
      <a data-marker="house_link">12к1</a>
      <span><span>Арбатская</span><span>6–10 мин.</span></span>
    </div>
  </div>
  <p data-marker="item-line">Сдается квартира с мебелью и техникой, есть лифт</p>
  <div data-marker="item-date">2 часа назад</div>
</div>`

func TestExtractCard(t *testing.T) {
	card, err := fields.NewCard(itemHTML)
	require.NoError(t, err)

	rec, err := New("https://www.avito.ru/moskva/kvartiry/sdam").ExtractCard(card)
	require.NoError(t, err)

	require.Equal(t, "3456789012", rec.ExternalID)
	require.Equal(t, "https://www.avito.ru/moskva/kvartiry/2-k._kvartira_45m_39et._3456789012?context=abc", rec.URL)
	require.Equal(t, "2", rec.Rooms)
	require.Equal(t, "45", rec.Area)
	require.Equal(t, "3", rec.Floor)
	require.Equal(t, "9", rec.TotalFloors)
	require.Equal(t, "65000", rec.Price)
	require.Equal(t, "Арбатская", rec.MetroStation)
	require.Equal(t, "ул. Ленина, 12к1", rec.Address)
	require.Equal(t, "6–10 мин", rec.MetroDistance)
	require.Equal(t, "0", rec.Deposit)
	require.Equal(t, "0", rec.Commission)
	require.True(t, rec.UtilitiesIncluded)
	require.Equal(t, "2 часа назад", rec.PublishedDate)
	require.Equal(t, []string{
		"https://00.img.avito.st/image/1/aaa.jpg",
		"https://00.img.avito.st/image/1/bbb.jpg",
	}, rec.Photos)
	require.Equal(t, models.Amenities{Furniture: true, Appliances: true, Elevator: true}, rec.Amenities)
}

func TestExtractCardStudioAndPriceFallback(t *testing.T) {
	card, err := fields.NewCard(`<div data-marker="item">
		<a data-marker="item-title" href="https://www.avito.ru/moskva/kvartiry/555">Квартира-студия, 25 м², 4/12 эт.</a>
		<span data-marker="item-price">40&nbsp;000 ₽</span>
	</div>`)
	require.NoError(t, err)

	rec, err := New("").ExtractCard(card)
	require.NoError(t, err)
	require.Equal(t, "555", rec.ExternalID)
	require.Equal(t, "0", rec.Rooms)
	require.Equal(t, "40000", rec.Price)
	require.Contains(t, rec.MissingFields, "description")
}

func TestExtractCardWithoutTitleLink(t *testing.T) {
	card, err := fields.NewCard(`<div data-marker="item"><span>Реклама</span></div>`)
	require.NoError(t, err)

	_, err = New("").ExtractCard(card)
	require.ErrorIs(t, err, scraper.ErrMissingID)
}

func TestExternalID(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/moskva/kvartiry/123456", "123456"},
		{"/moskva/kvartiry/1-k._kvartira_30m_59et._987654321?context=x", "987654321"},
		{"https://www.avito.ru/moskva/kvartiry/slug-only?x=1", "slug-only"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := externalID(tt.href); got != tt.want {
			t.Errorf("externalID(%q) = %q; want %q", tt.href, got, tt.want)
		}
	}
}

const detailHTML = `<html><body>
  <div data-marker="item-view/item-description">Просторная квартира. Есть посудомоечная машина и балкон.</div>
  <div data-marker="image-frame"><img src="//10.img.avito.st/image/1/detail1.jpg?size=big"></div>
  <div data-marker="image-frame"><img src="https://00.img.avito.st/image/1/bbb.jpg"></div>
  <a data-marker="item-phone-button/phone" href="tel:+79995554433">Показать</a>
  <div data-marker="seller-info/name">Иван</div>
  <div data-marker="seller-info/label">Собственник</div>
  <ul>
    <li data-marker="item-params/item"><span data-marker="item-params/label">Этаж:</span><span data-marker="item-params/value">4 из 17</span></li>
    <li data-marker="item-params/item"><span data-marker="item-params/label">Год постройки</span><span data-marker="item-params/value">2012</span></li>
    <li data-marker="item-params/item"><span data-marker="item-params/label">Тип дома</span><span data-marker="item-params/value">монолитный</span></li>
    <li data-marker="item-params/item"><span data-marker="item-params/label">Площадь кухни</span><span data-marker="item-params/value">10,5 м²</span></li>
  </ul>
  <ul>
    <li data-marker="item-conditions/item"><span data-marker="item-conditions/label">Залог</span><span data-marker="item-conditions/value">30 000 ₽</span></li>
    <li data-marker="item-conditions/item"><span data-marker="item-conditions/label">Комиссия</span><span data-marker="item-conditions/value">нет</span></li>
    <li data-marker="item-conditions/item"><span data-marker="item-conditions/label">Срок аренды</span><span data-marker="item-conditions/value">От года</span></li>
  </ul>
  <div data-marker="item-address/metro">Арбатская, 8 мин. на машине</div>
  <div data-marker="item-view/item-date">12 октября в 10:15</div>
  <div data-marker="item-address/district">р-н Арбат</div>
</body></html>`

func TestEnrichDetailWinsListFills(t *testing.T) {
	list := &models.RawListing{
		ExternalID:   "1",
		Description:  "Коротко",
		MetroStation: "Смоленская",
		Floor:        "3",
		TotalFloors:  "9",
		Photos:       []string{"https://00.img.avito.st/image/1/aaa.jpg", "https://00.img.avito.st/image/1/bbb.jpg"},
		Amenities:    models.Amenities{Furniture: true},
	}
	detail, err := fields.NewCard(detailHTML)
	require.NoError(t, err)

	out := New("").Enrich(list, detail)

	require.Equal(t, "Просторная квартира. Есть посудомоечная машина и балкон.", out.Description)
	require.Equal(t, []string{
		"https://10.img.avito.st/image/1/detail1.jpg",
		"https://00.img.avito.st/image/1/bbb.jpg",
		"https://00.img.avito.st/image/1/aaa.jpg",
	}, out.Photos)
	require.Equal(t, "+79995554433", out.ContactPhone)
	require.Equal(t, "Иван", out.ContactName)
	require.NotNil(t, out.IsOwner)
	require.True(t, *out.IsOwner)
	require.Equal(t, "4", out.Floor)
	require.Equal(t, "17", out.TotalFloors)
	require.Equal(t, "2012", out.BuildingYear)
	require.Equal(t, string(models.BuildingMonolith), out.BuildingType)
	require.Equal(t, "10,5", out.KitchenArea)
	require.Equal(t, "30000", out.Deposit)
	require.Equal(t, "0", out.Commission)
	require.Equal(t, "От года", out.RentalPeriod)
	require.Equal(t, "Арбатская", out.MetroStation)
	require.Equal(t, "8 мин", out.MetroDistance)
	require.Equal(t, "на машине", out.MetroTransport)
	require.Equal(t, "12 октября в 10:15", out.PublishedDate)
	require.Equal(t, "р-н Арбат", out.District)
	require.Equal(t, models.Amenities{Furniture: true, Appliances: true, Balcony: true}, out.Amenities)

	// The list record is not modified.
	require.Equal(t, "Коротко", list.Description)
	require.Len(t, list.Photos, 2)
}

func TestEnrichMetroStationFromDetail(t *testing.T) {
	list := &models.RawListing{ExternalID: "1", MetroStation: "Сокол"}
	detail, err := fields.NewCard(`<html><body><div data-marker="item-address/metro">Аэропорт, 5 мин. пешком</div></body></html>`)
	require.NoError(t, err)

	out := New("").Enrich(list, detail)

	require.Equal(t, "Аэропорт", out.MetroStation)
	require.Equal(t, "5 мин", out.MetroDistance)
	require.Equal(t, "пешком", out.MetroTransport)
	require.Equal(t, "Сокол", list.MetroStation)
}

func TestEnrichWithEmptyDetailKeepsListValues(t *testing.T) {
	list := &models.RawListing{ExternalID: "1", Description: "Описание", MetroDistance: "5 мин", Photos: []string{"https://00.img.avito.st/a.jpg"}}
	detail, err := fields.NewCard(`<html><body><h1>Объявление снято с публикации</h1></body></html>`)
	require.NoError(t, err)

	out := New("").Enrich(list, detail)
	require.Equal(t, "Описание", out.Description)
	require.Equal(t, "5 мин", out.MetroDistance)
	require.Equal(t, list.Photos, out.Photos)
	require.Nil(t, out.IsOwner)
}
