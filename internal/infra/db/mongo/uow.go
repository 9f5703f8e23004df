package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ListingsRepo domainlistings.ListingRepository
	BookingRepo  domainbooking.Repository
	PaymentRepo  domainpayment.Repository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// NewFactory builds a factory with the default repositories.
func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		ListingsRepo: NewListingRepository(db),
		BookingRepo:  NewBookingRepository(db),
		PaymentRepo:  NewPaymentRepository(db),
	}
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = options.Transaction().SetReadConcern(f.DB.ReadConcern())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:  session,
		listings: f.ListingsRepo,
		booking:  f.BookingRepo,
		payments: f.PaymentRepo,
	}, nil
}

type Unit struct {
	session mongo.Session

	listings domainlistings.ListingRepository
	booking  domainbooking.Repository
	payments domainpayment.Repository
}

func (u *Unit) Listings() domainlistings.ListingRepository {
	return u.listings
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.booking
}

func (u *Unit) Payments() domainpayment.Repository {
	return u.payments
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError")
}

var _ uow.UoWFactory = Factory{}
