package api

import (
	"context"

	"github.com/weatherapp/backend/internal/weather"
)

// WeatherService defines the orchestration operations needed by handlers.
type WeatherService interface {
	CreateLocation(ctx context.Context, in weather.CreateLocationInput) (*weather.Location, error)
	ListLocations(ctx context.Context, skip, limit int) ([]*weather.Location, error)
	DeleteLocation(ctx context.Context, id int64) (*weather.Location, error)

	IngestRange(ctx context.Context, in weather.IngestInput) ([]*weather.Info, error)
	GetInfo(ctx context.Context, id int64) (*weather.Info, error)
	ListInfos(ctx context.Context, skip, limit int) ([]*weather.Info, error)
	UpdateInfo(ctx context.Context, id int64, upd weather.InfoUpdate) (*weather.Info, error)
	DeleteInfo(ctx context.Context, id int64) (*weather.Info, error)
	InfoByLocationDate(ctx context.Context, locationID int64, date string) (*weather.Info, error)
	InfosByLocationDateRange(ctx context.Context, locationID int64, start, end string) ([]*weather.Info, error)

	Export(ctx context.Context) ([]*weather.ExportEntry, error)
	LocationVideos(ctx context.Context, locationID int64, maxResults int) (*weather.VideoLookup, error)
}
