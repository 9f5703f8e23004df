package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/apperr"
)

var (
	// ErrConcurrentUpdate is returned when an aggregate changed after it was loaded.
	ErrConcurrentUpdate = apperr.Conflict("memory: concurrent update detected")
	ErrReadOnly         = errors.New("memory: unit of work is read-only")
	ErrUnitClosed       = errors.New("memory: unit of work already closed")
)

// Store keeps committed state. Units of work stage their writes and apply them
// atomically on Commit, checking aggregate versions.
type Store struct {
	mu       sync.RWMutex
	listings map[domainlistings.ListingID]*domainlistings.Listing
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	payments map[string]*domainpayment.Payment
	outbox   *Outbox
}

func NewStore() *Store {
	return &Store{
		listings: make(map[domainlistings.ListingID]*domainlistings.Listing),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		payments: make(map[string]*domainpayment.Payment),
		outbox:   NewOutbox(),
	}
}

// Outbox returns the event queue units commit into.
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

// Begin implements uow.UoWFactory.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return &Unit{
		store:    s,
		readOnly: opts.ReadOnly,
		listings: make(map[domainlistings.ListingID]*domainlistings.Listing),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		payments: make(map[string]*domainpayment.Payment),
		bases:    make(map[string]int64),
	}, nil
}

// Unit is a uow.UnitOfWork over a Store.
type Unit struct {
	store    *Store
	readOnly bool

	mu       sync.Mutex
	closed   bool
	listings map[domainlistings.ListingID]*domainlistings.Listing
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	payments map[string]*domainpayment.Payment
	// bases holds the committed version each staged aggregate was loaded at.
	bases  map[string]int64
	events []appoutbox.EventRecord
}

func (u *Unit) Listings() domainlistings.ListingRepository {
	return listingRepository{unit: u}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return bookingRepository{unit: u}
}

func (u *Unit) Payments() domainpayment.Repository {
	return paymentRepository{unit: u}
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrUnitClosed
	}
	u.closed = true

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range u.bookings {
		var committed int64
		if current, ok := s.bookings[id]; ok {
			committed = current.Version
		}
		if committed != u.bases[bookingKey(id)] {
			return ErrConcurrentUpdate
		}
	}
	for id, staged := range u.payments {
		var committed int64
		if current, ok := s.payments[id]; ok {
			committed = current.Version
		}
		if committed != u.bases[paymentKey(id)] {
			return ErrConcurrentUpdate
		}
		for _, other := range s.payments {
			if other.ID != id && other.IntentID == staged.IntentID {
				return apperr.Conflict("memory: payment intent already recorded")
			}
		}
	}

	for id, l := range u.listings {
		s.listings[id] = l
	}
	for id, b := range u.bookings {
		s.bookings[id] = b
	}
	for id, p := range u.payments {
		s.payments[id] = p
	}
	s.outbox.append(u.events...)
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.listings = nil
	u.bookings = nil
	u.payments = nil
	u.bases = nil
	u.events = nil
	return nil
}

func bookingKey(id domainbooking.BookingID) string { return "booking:" + string(id) }
func paymentKey(id string) string                   { return "payment:" + id }

func (u *Unit) writable() error {
	if u.closed {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (u *Unit) stageEvent(rec appoutbox.EventRecord) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.writable(); err != nil {
		return err
	}
	u.events = append(u.events, rec)
	return nil
}

var _ uow.UoWFactory = (*Store)(nil)
