package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"staybook/internal/app/uow"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/money"
)

type listingFixture struct {
	ID          string          `json:"id"`
	Host        string          `json:"host"`
	Title       string          `json:"title"`
	NightlyRate int64           `json:"nightly_rate"`
	Currency    string          `json:"currency"`
	Location    fixtureLocation `json:"location"`
}

type fixtureLocation struct {
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// LoadListingFixtures seeds listings from a JSON file through the factory. A
// missing file is not an error. It returns the number of listings stored.
func LoadListingFixtures(ctx context.Context, factory uow.UoWFactory, path string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []listingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}
	if len(fixtures) == 0 {
		return 0, nil
	}

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return 0, err
	}
	ctx = uow.InjectSession(ctx, unit)
	now := time.Now()
	stored := 0
	for _, fx := range fixtures {
		rate, err := money.New(fx.NightlyRate, fx.Currency)
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		listing, err := listings.NewListing(listings.CreateListingParams{
			ID:          listings.ListingID(fx.ID),
			Owner:       listings.HostID(fx.Host),
			Title:       fx.Title,
			NightlyRate: rate,
			Location: listings.Location{
				City:    fx.Location.City,
				Country: fx.Location.Country,
				Lat:     fx.Location.Lat,
				Lon:     fx.Location.Lon,
			},
			Now: now,
		})
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		if err := unit.Listings().Save(ctx, listing); err != nil {
			_ = unit.Rollback(ctx)
			return 0, fmt.Errorf("store fixture %s: %w", fx.ID, err)
		}
		stored++
	}
	if err := unit.Commit(ctx); err != nil {
		return 0, err
	}
	logger.Info("listing fixtures imported", "count", stored, "path", path)
	return stored, nil
}

// DefaultFixturesPath returns the first listings file found next to the binary's working directory.
func DefaultFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "listings.json"),
		filepath.Join("..", "..", "data", "listings.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
