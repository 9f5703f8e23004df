package mongo

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
)

const (
	listingsCollection = "ref_listings"
	bookingsCollection = "agg_booking"
	paymentsCollection = "agg_payment"
)

// ErrConcurrentUpdate is returned when a versioned save loses a race.
var ErrConcurrentUpdate = apperr.Conflict("mongo: concurrent update detected")

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

func bsonKeys(fields ...string) bson.D {
	keys := make(bson.D, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return keys
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// saveErr folds write conflicts into ErrConcurrentUpdate.
func saveErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
		return ErrConcurrentUpdate
	}
	var we mongo.WriteException
	if errors.As(err, &we) && we.HasErrorCode(112) {
		return ErrConcurrentUpdate
	}
	return err
}
