package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "staybook/internal/domain/listings"
)

// ListingRepository mirrors listing data the booking engine reads.
type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(listingsCollection)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toListing(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	doc := newListingDocument(l)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type listingDocument struct {
	ID          string        `bson:"_id"`
	Owner       string        `bson:"owner"`
	Title       string        `bson:"title"`
	NightlyRate moneyDocument `bson:"nightly_rate"`
	City        string        `bson:"city"`
	Country     string        `bson:"country"`
	Lat         float64       `bson:"lat"`
	Lon         float64       `bson:"lon"`
	CreatedAt   int64         `bson:"created_at"`
	UpdatedAt   int64         `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:          string(l.ID),
		Owner:       string(l.Owner),
		Title:       l.Title,
		NightlyRate: newMoneyDocument(l.NightlyRate),
		City:        l.Location.City,
		Country:     l.Location.Country,
		Lat:         l.Location.Lat,
		Lon:         l.Location.Lon,
		CreatedAt:   timeToTimestamp(l.CreatedAt),
		UpdatedAt:   timeToTimestamp(l.UpdatedAt),
	}
}

func (d listingDocument) toListing() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Owner:       domainlistings.HostID(d.Owner),
		Title:       d.Title,
		NightlyRate: d.NightlyRate.toMoney(),
		Location: domainlistings.Location{
			City:    d.City,
			Country: d.Country,
			Lat:     d.Lat,
			Lon:     d.Lon,
		},
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}
