package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// forecastHorizonDays is the furthest ahead the free OpenWeather tier
// can forecast.
const forecastHorizonDays = 5

// LocationStore defines the location persistence operations the service needs.
// Lookups return nil, nil when nothing matches.
type LocationStore interface {
	CreateLocation(ctx context.Context, loc *Location) (*Location, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)
	GetLocationByCity(ctx context.Context, city, country string) (*Location, error)
	ListLocations(ctx context.Context, skip, limit int) ([]*Location, error)
	DeleteLocation(ctx context.Context, id int64) (*Location, error)
}

// InfoStore defines the weather-info persistence operations the service needs.
type InfoStore interface {
	CreateInfo(ctx context.Context, info *Info) (*Info, error)
	GetInfo(ctx context.Context, id int64) (*Info, error)
	ListInfos(ctx context.Context, skip, limit int) ([]*Info, error)
	UpdateInfo(ctx context.Context, id int64, upd InfoUpdate) (*Info, error)
	DeleteInfo(ctx context.Context, id int64) (*Info, error)
	GetInfoByLocDate(ctx context.Context, locationID int64, date Date) (*Info, error)
	GetInfosByLocDateRange(ctx context.Context, locationID int64, start, end Date) ([]*Info, error)
	ListInfosWithLocations(ctx context.Context) ([]*ExportEntry, error)
}

// Store is the full persistence surface backing the service.
type Store interface {
	LocationStore
	InfoStore
}

// Provider fetches weather data from the upstream weather API.
type Provider interface {
	Current(ctx context.Context, city, country string) (*CurrentConditions, error)
	Forecast(ctx context.Context, date Date, city, country string) (*ForecastConditions, error)
}

// VideoSearcher finds videos for a free-text query.
type VideoSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]Video, error)
}

// VideoCache caches video search results. Get returns nil, nil on a miss.
type VideoCache interface {
	Get(ctx context.Context, query string, limit int) ([]Video, error)
	Set(ctx context.Context, query string, limit int, videos []Video) error
}

// Service validates incoming parameters, decides which collaborator calls
// are needed, and assembles responses.
type Service struct {
	store      Store
	provider   Provider
	videos     VideoSearcher
	videoCache VideoCache
	log        *slog.Logger
	now        func() time.Time
}

// NewService constructs a Service wired to the given collaborators.
func NewService(store Store, provider Provider, videos VideoSearcher, videoCache VideoCache, log *slog.Logger) *Service {
	return &Service{
		store:      store,
		provider:   provider,
		videos:     videos,
		videoCache: videoCache,
		log:        log,
		now:        time.Now,
	}
}

// NewServiceWithClock constructs a Service with an injectable clock (for tests).
func NewServiceWithClock(store Store, provider Provider, videos VideoSearcher, videoCache VideoCache, log *slog.Logger, now func() time.Time) *Service {
	s := NewService(store, provider, videos, videoCache, log)
	s.now = now
	return s
}

func (s *Service) today() Date {
	return DateOf(s.now())
}

// CreateLocationInput holds the parameters for CreateLocation. Lat/Lon
// are optional; when absent they are resolved via the weather provider.
type CreateLocationInput struct {
	City    string
	Country string
	Lat     *float64
	Lon     *float64
}

// CreateLocation creates a new location. It fails with a ValidationError
// when the city is missing and with ErrConflict when a location with the
// same (city, country) already exists.
func (s *Service) CreateLocation(ctx context.Context, in CreateLocationInput) (*Location, error) {
	if in.City == "" {
		return nil, invalid("city is required")
	}

	loc := &Location{City: in.City, Country: in.Country}
	if in.Lat != nil && in.Lon != nil {
		loc.Lat = *in.Lat
		loc.Lon = *in.Lon
	} else {
		cur, err := s.provider.Current(ctx, in.City, in.Country)
		if err != nil {
			return nil, err
		}
		loc.Lat = cur.Lat
		loc.Lon = cur.Lon
	}

	existing, err := s.store.GetLocationByCity(ctx, in.City, in.Country)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{Message: "location already exists"}
	}

	created, err := s.store.CreateLocation(ctx, loc)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, &ConflictError{Message: "location already exists"}
		}
		return nil, err
	}

	s.log.Info("location created", "id", created.ID, "city", created.City, "country", created.Country)
	return created, nil
}

// ListLocations returns a page of locations.
func (s *Service) ListLocations(ctx context.Context, skip, limit int) ([]*Location, error) {
	return s.store.ListLocations(ctx, skip, limit)
}

// DeleteLocation removes a location by id and returns the deleted record.
func (s *Service) DeleteLocation(ctx context.Context, id int64) (*Location, error) {
	loc, err := s.store.DeleteLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, fmt.Errorf("location %d: %w", id, ErrNotFound)
	}
	return loc, nil
}

// IngestInput holds the raw parameters of an ingestion request. Dates are
// ISO YYYY-MM-DD strings; validation happens inside IngestRange.
type IngestInput struct {
	City      string
	Country   string
	StartDate string
	EndDate   string
}

// IngestRange fetches and stores weather infos for every date in the
// inclusive [start, end] range, reusing rows that already exist. It returns
// the ordered sequence of infos spanning the range.
//
// Each date persists independently: a provider failure partway through the
// range leaves earlier dates' rows in place.
func (s *Service) IngestRange(ctx context.Context, in IngestInput) ([]*Info, error) {
	if in.City == "" || in.StartDate == "" || in.EndDate == "" {
		return nil, invalid("city, start_date, and end_date are required")
	}

	start, err := ParseDate(in.StartDate)
	if err != nil {
		return nil, invalid("invalid date format, use YYYY-MM-DD")
	}
	end, err := ParseDate(in.EndDate)
	if err != nil {
		return nil, invalid("invalid date format, use YYYY-MM-DD")
	}

	if start.After(end.Time) {
		return nil, invalid("start_date must not be after end_date")
	}

	today := s.today()
	if start.Before(today.Time) || end.Before(today.Time) {
		return nil, invalid("historical data is not supported by the weather provider")
	}

	horizon := today.AddDays(forecastHorizonDays)
	if start.After(horizon.Time) || end.After(horizon.Time) {
		return nil, invalid(fmt.Sprintf("forecasts are limited to %d days ahead", forecastHorizonDays))
	}

	loc, err := s.resolveOrCreateLocation(ctx, in.City, in.Country)
	if err != nil {
		return nil, err
	}

	var infos []*Info
	for d := start; !d.After(end.Time); d = d.AddDays(1) {
		info, err := s.infoForDate(ctx, loc, in.City, in.Country, d, today)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// resolveOrCreateLocation returns the stored location for (city, country),
// creating it with provider-resolved coordinates when absent.
func (s *Service) resolveOrCreateLocation(ctx context.Context, city, country string) (*Location, error) {
	loc, err := s.store.GetLocationByCity(ctx, city, country)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		return loc, nil
	}

	cur, err := s.provider.Current(ctx, city, country)
	if err != nil {
		return nil, err
	}

	loc, err = s.store.CreateLocation(ctx, &Location{
		City:    city,
		Country: country,
		Lat:     cur.Lat,
		Lon:     cur.Lon,
	})
	if err != nil {
		// A concurrent request won the insert; use its row.
		if errors.Is(err, ErrConflict) {
			return s.store.GetLocationByCity(ctx, city, country)
		}
		return nil, err
	}

	s.log.Info("location auto-created during ingestion", "id", loc.ID, "city", loc.City)
	return loc, nil
}

// infoForDate returns the stored info for (loc, d), fetching and persisting
// one when none exists. Today's date uses current weather; future dates use
// the forecast.
func (s *Service) infoForDate(ctx context.Context, loc *Location, city, country string, d, today Date) (*Info, error) {
	info, err := s.store.GetInfoByLocDate(ctx, loc.ID, d)
	if err != nil {
		return nil, err
	}
	if info != nil {
		return info, nil
	}

	var temp float64
	var desc, raw string
	if d.Equal(today.Time) {
		cur, err := s.provider.Current(ctx, city, country)
		if err != nil {
			return nil, err
		}
		temp, desc, raw = cur.Temperature, cur.Description, string(cur.Raw)
	} else {
		fc, err := s.provider.Forecast(ctx, d, city, country)
		if err != nil {
			return nil, err
		}
		temp, desc, raw = fc.Temperature, fc.Description, string(fc.Raw)
	}

	info, err = s.store.CreateInfo(ctx, &Info{
		LocationID:         loc.ID,
		Date:               d,
		Temperature:        temp,
		WeatherDescription: desc,
		RawData:            &raw,
	})
	if err != nil {
		// Lost a race against a concurrent ingestion of the same date;
		// the unique constraint guarantees a winner row exists.
		if errors.Is(err, ErrConflict) {
			won, getErr := s.store.GetInfoByLocDate(ctx, loc.ID, d)
			if getErr != nil {
				return nil, getErr
			}
			if won != nil {
				return won, nil
			}
			return nil, &ConflictError{Message: "weather info already exists"}
		}
		return nil, err
	}

	return info, nil
}

// GetInfo fetches one weather info by id.
func (s *Service) GetInfo(ctx context.Context, id int64) (*Info, error) {
	info, err := s.store.GetInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("weather info %d: %w", id, ErrNotFound)
	}
	return info, nil
}

// ListInfos returns a page of weather infos.
func (s *Service) ListInfos(ctx context.Context, skip, limit int) ([]*Info, error) {
	return s.store.ListInfos(ctx, skip, limit)
}

// UpdateInfo applies a partial update to a weather info. Unset fields
// remain untouched.
func (s *Service) UpdateInfo(ctx context.Context, id int64, upd InfoUpdate) (*Info, error) {
	info, err := s.store.UpdateInfo(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("weather info %d: %w", id, ErrNotFound)
	}
	return info, nil
}

// DeleteInfo removes a weather info by id and returns the deleted record.
func (s *Service) DeleteInfo(ctx context.Context, id int64) (*Info, error) {
	info, err := s.store.DeleteInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("weather info %d: %w", id, ErrNotFound)
	}
	return info, nil
}

// InfoByLocationDate fetches the info for a location and exact date.
func (s *Service) InfoByLocationDate(ctx context.Context, locationID int64, dateStr string) (*Info, error) {
	d, err := ParseDate(dateStr)
	if err != nil {
		return nil, invalid("invalid date format, use YYYY-MM-DD")
	}

	info, err := s.store.GetInfoByLocDate(ctx, locationID, d)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("weather info for location %d on %s: %w", locationID, d, ErrNotFound)
	}
	return info, nil
}

// InfosByLocationDateRange fetches the infos for a location within an
// inclusive date range. An empty result set is a not-found condition.
func (s *Service) InfosByLocationDateRange(ctx context.Context, locationID int64, startStr, endStr string) ([]*Info, error) {
	start, err := ParseDate(startStr)
	if err != nil {
		return nil, invalid("invalid date format, use YYYY-MM-DD")
	}
	end, err := ParseDate(endStr)
	if err != nil {
		return nil, invalid("invalid date format, use YYYY-MM-DD")
	}

	infos, err := s.store.GetInfosByLocDateRange(ctx, locationID, start, end)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("weather infos for location %d: %w", locationID, ErrNotFound)
	}
	return infos, nil
}

// Export returns every stored weather info with its owning location embedded.
func (s *Service) Export(ctx context.Context) ([]*ExportEntry, error) {
	entries, err := s.store.ListInfosWithLocations(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*ExportEntry{}
	}
	return entries, nil
}

// LocationVideos returns up to maxResults videos about the weather in the
// given location's city. Results are served from the video cache when fresh.
func (s *Service) LocationVideos(ctx context.Context, locationID int64, maxResults int) (*VideoLookup, error) {
	loc, err := s.store.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, fmt.Errorf("location %d: %w", locationID, ErrNotFound)
	}

	query := "weather in " + loc.City
	if loc.Country != "" {
		query += ", " + loc.Country
	}

	cached, err := s.videoCache.Get(ctx, query, maxResults)
	if err != nil {
		s.log.Error("video cache get failed", "query", query, "err", err)
	}
	if cached != nil {
		return &VideoLookup{Location: loc.City, Videos: cached}, nil
	}

	videos, err := s.videos.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if err := s.videoCache.Set(ctx, query, maxResults, videos); err != nil {
		s.log.Warn("video cache set failed", "query", query, "err", err)
	}

	return &VideoLookup{Location: loc.City, Videos: videos}, nil
}
