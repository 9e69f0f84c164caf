package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weatherapp/backend/internal/weather"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for locations and weather infos.
// Lookups return nil, nil when nothing matches; uniqueness violations map
// to weather.ErrConflict.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// Ensure Repository covers the full persistence surface the service needs.
var _ weather.Store = (*Repository)(nil)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const locationColumns = "id, city, country, lat, lon, created_at"

func scanLocation(row pgx.Row) (*weather.Location, error) {
	var loc weather.Location
	err := row.Scan(&loc.ID, &loc.City, &loc.Country, &loc.Lat, &loc.Lon, &loc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// CreateLocation inserts a new location and returns the stored record.
// A duplicate (city, country) pair yields weather.ErrConflict.
func (r *Repository) CreateLocation(ctx context.Context, loc *weather.Location) (*weather.Location, error) {
	const q = `
		INSERT INTO locations (city, country, lat, lon)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + locationColumns

	created, err := scanLocation(r.q.QueryRow(ctx, q, loc.City, loc.Country, loc.Lat, loc.Lon))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("location %s/%s: %w", loc.City, loc.Country, weather.ErrConflict)
		}
		return nil, fmt.Errorf("inserting location %s: %w", loc.City, err)
	}

	return created, nil
}

// GetLocation retrieves a location by id.
func (r *Repository) GetLocation(ctx context.Context, id int64) (*weather.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`

	loc, err := scanLocation(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying location %d: %w", id, err)
	}

	return loc, nil
}

// GetLocationByCity retrieves a location by its (city, country) pair.
func (r *Repository) GetLocationByCity(ctx context.Context, city, country string) (*weather.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE city = $1 AND country = $2`

	loc, err := scanLocation(r.q.QueryRow(ctx, q, city, country))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying location %s/%s: %w", city, country, err)
	}

	return loc, nil
}

// ListLocations returns a page of locations ordered by id.
func (r *Repository) ListLocations(ctx context.Context, skip, limit int) ([]*weather.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations ORDER BY id OFFSET $1 LIMIT $2`

	rows, err := r.q.Query(ctx, q, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locs []*weather.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location row: %w", err)
		}
		locs = append(locs, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location rows: %w", err)
	}

	return locs, nil
}

// DeleteLocation removes a location by id and returns the deleted record,
// or nil, nil when no such id exists.
func (r *Repository) DeleteLocation(ctx context.Context, id int64) (*weather.Location, error) {
	const q = `DELETE FROM locations WHERE id = $1 RETURNING ` + locationColumns

	loc, err := scanLocation(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("deleting location %d: %w", id, err)
	}

	return loc, nil
}

const infoColumns = "id, location_id, date, temperature, weather_description, raw_data, created_at, updated_at"

func scanInfo(row pgx.Row) (*weather.Info, error) {
	var info weather.Info
	var date time.Time
	err := row.Scan(
		&info.ID,
		&info.LocationID,
		&date,
		&info.Temperature,
		&info.WeatherDescription,
		&info.RawData,
		&info.CreatedAt,
		&info.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	info.Date = weather.DateOf(date)
	return &info, nil
}

// CreateInfo inserts a new weather info and returns the stored record.
// A duplicate (location, date) pair yields weather.ErrConflict.
func (r *Repository) CreateInfo(ctx context.Context, info *weather.Info) (*weather.Info, error) {
	const q = `
		INSERT INTO weather_infos (location_id, date, temperature, weather_description, raw_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + infoColumns

	created, err := scanInfo(r.q.QueryRow(ctx, q,
		info.LocationID, info.Date.Time, info.Temperature, info.WeatherDescription, info.RawData))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("weather info for location %d on %s: %w",
				info.LocationID, info.Date, weather.ErrConflict)
		}
		return nil, fmt.Errorf("inserting weather info for location %d: %w", info.LocationID, err)
	}

	return created, nil
}

// GetInfo retrieves a weather info by id.
func (r *Repository) GetInfo(ctx context.Context, id int64) (*weather.Info, error) {
	const q = `SELECT ` + infoColumns + ` FROM weather_infos WHERE id = $1`

	info, err := scanInfo(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying weather info %d: %w", id, err)
	}

	return info, nil
}

// ListInfos returns a page of weather infos ordered by id.
func (r *Repository) ListInfos(ctx context.Context, skip, limit int) ([]*weather.Info, error) {
	const q = `SELECT ` + infoColumns + ` FROM weather_infos ORDER BY id OFFSET $1 LIMIT $2`

	rows, err := r.q.Query(ctx, q, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("listing weather infos: %w", err)
	}
	defer rows.Close()

	return collectInfos(rows)
}

func collectInfos(rows pgx.Rows) ([]*weather.Info, error) {
	var infos []*weather.Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning weather info row: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating weather info rows: %w", err)
	}

	return infos, nil
}

// UpdateInfo applies a partial update; nil fields keep their stored values.
// Returns nil, nil when no such id exists.
func (r *Repository) UpdateInfo(ctx context.Context, id int64, upd weather.InfoUpdate) (*weather.Info, error) {
	const q = `
		UPDATE weather_infos
		SET temperature         = COALESCE($2, temperature),
		    weather_description = COALESCE($3, weather_description),
		    raw_data            = COALESCE($4, raw_data),
		    updated_at          = NOW()
		WHERE id = $1
		RETURNING ` + infoColumns

	info, err := scanInfo(r.q.QueryRow(ctx, q, id, upd.Temperature, upd.WeatherDescription, upd.RawData))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("updating weather info %d: %w", id, err)
	}

	return info, nil
}

// DeleteInfo removes a weather info by id and returns the deleted record,
// or nil, nil when no such id exists.
func (r *Repository) DeleteInfo(ctx context.Context, id int64) (*weather.Info, error) {
	const q = `DELETE FROM weather_infos WHERE id = $1 RETURNING ` + infoColumns

	info, err := scanInfo(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("deleting weather info %d: %w", id, err)
	}

	return info, nil
}

// GetInfoByLocDate retrieves the info for a location and exact date,
// or nil, nil when none exists.
func (r *Repository) GetInfoByLocDate(ctx context.Context, locationID int64, date weather.Date) (*weather.Info, error) {
	const q = `SELECT ` + infoColumns + ` FROM weather_infos WHERE location_id = $1 AND date = $2`

	info, err := scanInfo(r.q.QueryRow(ctx, q, locationID, date.Time))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying weather info for location %d on %s: %w", locationID, date, err)
	}

	return info, nil
}

// GetInfosByLocDateRange retrieves the infos for a location within an
// inclusive date range, ordered by date.
func (r *Repository) GetInfosByLocDateRange(ctx context.Context, locationID int64, start, end weather.Date) ([]*weather.Info, error) {
	const q = `
		SELECT ` + infoColumns + `
		FROM weather_infos
		WHERE location_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`

	rows, err := r.q.Query(ctx, q, locationID, start.Time, end.Time)
	if err != nil {
		return nil, fmt.Errorf("querying weather infos for location %d: %w", locationID, err)
	}
	defer rows.Close()

	return collectInfos(rows)
}

// ListInfosWithLocations returns every weather info joined with its owning
// location, for the export endpoint.
func (r *Repository) ListInfosWithLocations(ctx context.Context) ([]*weather.ExportEntry, error) {
	const q = `
		SELECT i.id, i.date, i.temperature, i.weather_description,
		       l.id, l.city, l.country, l.lat, l.lon
		FROM weather_infos i
		JOIN locations l ON l.id = i.location_id
		ORDER BY i.id`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying weather infos for export: %w", err)
	}
	defer rows.Close()

	var entries []*weather.ExportEntry
	for rows.Next() {
		var e weather.ExportEntry
		var date time.Time
		if err := rows.Scan(
			&e.ID,
			&date,
			&e.Temperature,
			&e.Description,
			&e.Location.ID,
			&e.Location.City,
			&e.Location.Country,
			&e.Location.Lat,
			&e.Location.Lon,
		); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		e.Date = weather.DateOf(date)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating export rows: %w", err)
	}

	return entries, nil
}
