package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"rental-parser/models"
	"rental-parser/services"
	"rental-parser/utils"
)

// apartmentColumns is the insert order used by upsertBatch; values must match.
var apartmentColumns = []string{
	"source", "external_id", "url", "title", "description",
	"price", "area", "rooms", "floor", "total_floors",
	"metro_station", "metro_distance", "metro_transport", "address", "district",
	"photos", "contact_name", "contact_phone", "is_owner", "no_commission",
	"building_year", "building_type", "living_area", "kitchen_area",
	"deposit", "commission", "utilities_included", "rental_period", "published_date",
	"has_furniture", "has_appliances", "has_internet", "has_parking", "has_elevator", "has_balcony",
	"features",
}

func apartmentValues(a *models.Apartment) []interface{} {
	return []interface{}{
		a.Source, a.ExternalID, a.URL, a.Title, a.Description,
		a.Price, a.Area, a.Rooms, a.Floor, a.TotalFloors,
		a.MetroStation, a.MetroDistance, a.MetroTransport, a.Address, a.District,
		pq.Array(a.Photos), a.ContactName, a.ContactPhone, a.IsOwner, a.NoCommission,
		a.BuildingYear, a.BuildingType, a.LivingArea, a.KitchenArea,
		a.Deposit, a.Commission, a.UtilitiesIncluded, a.RentalPeriod, a.PublishedDate,
		a.HasFurniture, a.HasAppliances, a.HasInternet, a.HasParking, a.HasElevator, a.HasBalcony,
		pq.Array(a.Features),
	}
}

// PostgresStore persists apartments directly, standing in for the HTTP
// upstream when POSTGRES_DSN is set.
type PostgresStore struct {
	db       *sql.DB
	insights *services.InsightService
	logger   *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Warn("[postgres] Ping failed (attempt %d/10): %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db, insights: services.NewInsightService(logger), logger: logger}
	if err := ps.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS apartments (
			id                 SERIAL PRIMARY KEY,
			source             VARCHAR(20)   NOT NULL,
			external_id        VARCHAR(64)   NOT NULL,
			url                TEXT          NOT NULL DEFAULT '',
			title              TEXT          NOT NULL DEFAULT '',
			description        TEXT          NOT NULL DEFAULT '',
			price              NUMERIC(12,2) NOT NULL DEFAULT 0,
			area               NUMERIC(8,2),
			rooms              INTEGER,
			floor              INTEGER,
			total_floors       INTEGER,
			metro_station      TEXT          NOT NULL DEFAULT '',
			metro_distance     TEXT          NOT NULL DEFAULT '',
			metro_transport    TEXT          NOT NULL DEFAULT '',
			address            TEXT          NOT NULL DEFAULT '',
			district           TEXT          NOT NULL DEFAULT '',
			photos             TEXT[]        NOT NULL DEFAULT '{}',
			contact_name       TEXT          NOT NULL DEFAULT '',
			contact_phone      TEXT          NOT NULL DEFAULT '',
			is_owner           BOOLEAN       NOT NULL DEFAULT TRUE,
			no_commission      BOOLEAN       NOT NULL DEFAULT TRUE,
			building_year      INTEGER,
			building_type      VARCHAR(20)   NOT NULL DEFAULT 'unknown',
			living_area        NUMERIC(8,2),
			kitchen_area       NUMERIC(8,2),
			deposit            NUMERIC(12,2),
			commission         NUMERIC(12,2),
			utilities_included BOOLEAN       NOT NULL DEFAULT FALSE,
			rental_period      TEXT          NOT NULL DEFAULT '',
			published_date     TEXT          NOT NULL DEFAULT '',
			has_furniture      BOOLEAN       NOT NULL DEFAULT FALSE,
			has_appliances     BOOLEAN       NOT NULL DEFAULT FALSE,
			has_internet       BOOLEAN       NOT NULL DEFAULT FALSE,
			has_parking        BOOLEAN       NOT NULL DEFAULT FALSE,
			has_elevator       BOOLEAN       NOT NULL DEFAULT FALSE,
			has_balcony        BOOLEAN       NOT NULL DEFAULT FALSE,
			features           TEXT[]        NOT NULL DEFAULT '{}',
			created_at         TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			UNIQUE (source, external_id)
		);

		CREATE INDEX IF NOT EXISTS idx_apartments_price  ON apartments(price);
		CREATE INDEX IF NOT EXISTS idx_apartments_source ON apartments(source);
		CREATE INDEX IF NOT EXISTS idx_apartments_rooms  ON apartments(rooms);
	`)
	return err
}

// Submit upserts the batch on (source, external_id) and counts inserted
// versus updated rows.
func (ps *PostgresStore) Submit(ctx context.Context, source models.Source, apartments []*models.Apartment) (models.SubmitResult, error) {
	var res models.SubmitResult
	batch := uniqueByKey(apartments)

	const batchSize = 50
	for i := 0; i < len(batch); i += batchSize {
		end := i + batchSize
		if end > len(batch) {
			end = len(batch)
		}
		inserted, updated, err := ps.upsertBatch(ctx, batch[i:end])
		if err != nil {
			return models.SubmitResult{}, fmt.Errorf("postgres: upsert %s: %w", source, err)
		}
		res.New += inserted
		res.Updated += updated
	}

	ps.logger.Info("[postgres] %s: stored %d apartments (new: %d, updated: %d)", source, len(batch), res.New, res.Updated)
	return res, nil
}

// uniqueByKey keeps the last apartment per key; a single INSERT may not
// touch the same conflict target twice.
func uniqueByKey(apartments []*models.Apartment) []*models.Apartment {
	index := make(map[string]int, len(apartments))
	out := make([]*models.Apartment, 0, len(apartments))
	for _, a := range apartments {
		if i, ok := index[a.Key()]; ok {
			out[i] = a
			continue
		}
		index[a.Key()] = len(out)
		out = append(out, a)
	}
	return out
}

// buildUpsert returns the statement for n rows. xmax is 0 only for rows
// this statement inserted.
func buildUpsert(n int) string {
	cols := len(apartmentColumns)
	valueStrings := make([]string, 0, n)
	for row := 0; row < n; row++ {
		ph := make([]string, cols)
		for c := range ph {
			ph[c] = fmt.Sprintf("$%d", row*cols+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
	}

	updates := make([]string, 0, cols)
	for _, c := range apartmentColumns[2:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	updates = append(updates, "updated_at = NOW()")

	return fmt.Sprintf(`
		INSERT INTO apartments (%s)
		VALUES %s
		ON CONFLICT (source, external_id) DO UPDATE SET %s
		RETURNING (xmax = 0) AS inserted
	`, strings.Join(apartmentColumns, ", "), strings.Join(valueStrings, ","), strings.Join(updates, ", "))
}

func (ps *PostgresStore) upsertBatch(ctx context.Context, batch []*models.Apartment) (inserted, updated int, err error) {
	valueArgs := make([]interface{}, 0, len(batch)*len(apartmentColumns))
	for _, a := range batch {
		valueArgs = append(valueArgs, apartmentValues(a)...)
	}

	rows, err := ps.db.QueryContext(ctx, buildUpsert(len(batch)), valueArgs...)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var isNew bool
		if err := rows.Scan(&isNew); err != nil {
			return 0, 0, err
		}
		if isNew {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, rows.Err()
}

// Stats aggregates every stored apartment.
func (ps *PostgresStore) Stats(ctx context.Context) (json.RawMessage, error) {
	apartments, err := ps.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ps.insights.Generate(apartments))
}

// FetchAll retrieves the identifying and numeric columns of every stored
// apartment, used by the insight service.
func (ps *PostgresStore) FetchAll(ctx context.Context) ([]*models.Apartment, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT source, external_id, url, title, price, area, rooms
		FROM apartments
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var apartments []*models.Apartment
	for rows.Next() {
		a := &models.Apartment{}
		var area sql.NullFloat64
		var rooms sql.NullInt64
		if err := rows.Scan(&a.Source, &a.ExternalID, &a.URL, &a.Title, &a.Price, &area, &rooms); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if area.Valid {
			v := area.Float64
			a.Area = &v
		}
		if rooms.Valid {
			v := int(rooms.Int64)
			a.Rooms = &v
		}
		apartments = append(apartments, a)
	}
	return apartments, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
