package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
)

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{col: db.Collection(paymentsCollection)}
}

func (r *PaymentRepository) ByBooking(ctx context.Context, bookingID domainbooking.BookingID) (*domainpayment.Payment, error) {
	return r.findOne(ctx, bson.M{"booking_id": string(bookingID)})
}

func (r *PaymentRepository) ByIntent(ctx context.Context, intentID string) (*domainpayment.Payment, error) {
	if intentID == "" {
		return nil, domainpayment.ErrPaymentNotFound
	}
	return r.findOne(ctx, bson.M{"intent_id": intentID})
}

func (r *PaymentRepository) Save(ctx context.Context, p *domainpayment.Payment) error {
	doc := newPaymentDocument(p)
	filter := bson.M{"_id": doc.ID, "version": p.Version}
	doc.Version = p.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return saveErr(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	p.Version = doc.Version
	return nil
}

func (r *PaymentRepository) findOne(ctx context.Context, filter bson.M) (*domainpayment.Payment, error) {
	var doc paymentDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if err := r.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpayment.ErrPaymentNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

type paymentDocument struct {
	ID           string        `bson:"_id"`
	BookingID    string        `bson:"booking_id"`
	GuestID      string        `bson:"guest_id"`
	IntentID     string        `bson:"intent_id"`
	Amount       moneyDocument `bson:"amount"`
	Status       string        `bson:"status"`
	RefundID     string        `bson:"refund_id,omitempty"`
	RefundAmount moneyDocument `bson:"refund_amount"`
	RefundReason string        `bson:"refund_reason,omitempty"`
	CreatedAt    int64         `bson:"created_at"`
	UpdatedAt    int64         `bson:"updated_at"`
	Version      int64         `bson:"version"`
}

func newPaymentDocument(p *domainpayment.Payment) paymentDocument {
	return paymentDocument{
		ID:           p.ID,
		BookingID:    string(p.BookingID),
		GuestID:      p.GuestID,
		IntentID:     p.IntentID,
		Amount:       newMoneyDocument(p.Amount),
		Status:       string(p.Status),
		RefundID:     p.RefundID,
		RefundAmount: newMoneyDocument(p.RefundAmount),
		RefundReason: p.RefundReason,
		CreatedAt:    timeToTimestamp(p.CreatedAt),
		UpdatedAt:    timeToTimestamp(p.UpdatedAt),
		Version:      p.Version,
	}
}

func (d paymentDocument) toAggregate() *domainpayment.Payment {
	return &domainpayment.Payment{
		ID:           d.ID,
		BookingID:    domainbooking.BookingID(d.BookingID),
		GuestID:      d.GuestID,
		IntentID:     d.IntentID,
		Amount:       d.Amount.toMoney(),
		Status:       domainpayment.Status(d.Status),
		RefundID:     d.RefundID,
		RefundAmount: d.RefundAmount.toMoney(),
		RefundReason: d.RefundReason,
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		Version:      d.Version,
	}
}
