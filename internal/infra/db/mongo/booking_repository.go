package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save upserts on {_id, version}; a stale version fails with ErrConcurrentUpdate.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return saveErr(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := bson.M{"listing_id": string(listingID)}
	if len(statuses) > 0 {
		in := make(bson.A, 0, len(statuses))
		for _, s := range statuses {
			in = append(in, string(s))
		}
		filter["status"] = bson.M{"$in": in}
	}
	return r.find(ctx, filter)
}

func (r *BookingRepository) ListByParticipant(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	filter := bson.M{"$or": bson.A{bson.M{"guest_id": userID}, bson.M{"host_id": userID}}}
	return r.find(ctx, filter)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type bookingDocument struct {
	ID              string                `bson:"_id"`
	ListingID       string                `bson:"listing_id"`
	GuestID         string                `bson:"guest_id"`
	HostID          string                `bson:"host_id"`
	Range           rangeDocument         `bson:"range"`
	Guests          int                   `bson:"guests"`
	SpecialRequests string                `bson:"special_requests,omitempty"`
	NightlyRate     moneyDocument         `bson:"nightly_rate"`
	Nights          int                   `bson:"nights"`
	TotalPrice      moneyDocument         `bson:"total_price"`
	Commission      moneyDocument         `bson:"commission"`
	HostPayout      moneyDocument         `bson:"host_payout"`
	Status          string                `bson:"status"`
	PaymentStatus   string                `bson:"payment_status"`
	PaymentIntentID string                `bson:"payment_intent_id,omitempty"`
	RefundID        string                `bson:"refund_id,omitempty"`
	RefundAmount    moneyDocument         `bson:"refund_amount"`
	Cancellation    *cancellationDocument `bson:"cancellation,omitempty"`
	NeedsRecon      bool                  `bson:"needs_reconciliation"`
	ReconNote       string                `bson:"reconciliation_note,omitempty"`
	CreatedAt       int64                 `bson:"created_at"`
	UpdatedAt       int64                 `bson:"updated_at"`
	Version         int64                 `bson:"version"`
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

type cancellationDocument struct {
	Reason string `bson:"reason"`
	At     int64  `bson:"at"`
	By     string `bson:"by"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		GuestID:         b.GuestID,
		HostID:          b.HostID,
		Range:           rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Guests:          b.Guests,
		SpecialRequests: b.SpecialRequests,
		NightlyRate:     newMoneyDocument(b.NightlyRate),
		Nights:          b.Nights,
		TotalPrice:      newMoneyDocument(b.TotalPrice),
		Commission:      newMoneyDocument(b.Commission),
		HostPayout:      newMoneyDocument(b.HostPayout),
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		PaymentIntentID: b.PaymentIntentID,
		RefundID:        b.RefundID,
		RefundAmount:    newMoneyDocument(b.RefundAmount),
		NeedsRecon:      b.NeedsReconciliation,
		ReconNote:       b.ReconciliationNote,
		CreatedAt:       timeToTimestamp(b.CreatedAt),
		UpdatedAt:       timeToTimestamp(b.UpdatedAt),
		Version:         b.Version,
	}
	if c := b.Cancellation; c != nil {
		doc.Cancellation = &cancellationDocument{Reason: c.Reason, At: timeToTimestamp(c.At), By: string(c.By)}
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	b := &domainbooking.Booking{
		ID:                  domainbooking.BookingID(d.ID),
		ListingID:           listings.ListingID(d.ListingID),
		GuestID:             d.GuestID,
		HostID:              d.HostID,
		Range:               daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Guests:              d.Guests,
		SpecialRequests:     d.SpecialRequests,
		NightlyRate:         d.NightlyRate.toMoney(),
		Nights:              d.Nights,
		TotalPrice:          d.TotalPrice.toMoney(),
		Commission:          d.Commission.toMoney(),
		HostPayout:          d.HostPayout.toMoney(),
		Status:              domainbooking.Status(d.Status),
		PaymentStatus:       domainbooking.PaymentStatus(d.PaymentStatus),
		PaymentIntentID:     d.PaymentIntentID,
		RefundID:            d.RefundID,
		RefundAmount:        d.RefundAmount.toMoney(),
		NeedsReconciliation: d.NeedsRecon,
		ReconciliationNote:  d.ReconNote,
		CreatedAt:           timestampToTime(d.CreatedAt),
		UpdatedAt:           timestampToTime(d.UpdatedAt),
		Version:             d.Version,
	}
	if c := d.Cancellation; c != nil {
		b.Cancellation = &domainbooking.Cancellation{Reason: c.Reason, At: timestampToTime(c.At), By: domainbooking.Actor(c.By)}
	}
	return b
}
