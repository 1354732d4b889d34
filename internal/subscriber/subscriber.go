// Package subscriber provides a dlob.AccountSubscriber that primes a book
// from a fixture and then keeps refreshing it on a timer, supervised the way
// the teacher's WorkerPool supervises its goroutines.
package subscriber

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"dlob/internal/dlob"
)

// OrderUpdate is one order belonging to one user, as a data source would
// decode it off an account.
type OrderUpdate struct {
	User  solana.PublicKey
	Order dlob.Order
}

// Snapshot is everything a single poll of a data source produced.
type Snapshot struct {
	Slot   uint64
	Orders []OrderUpdate
}

// Source is whatever produces order snapshots: an RPC poller, a geyser
// stream, or, for the demo CLI, a static fixture. Decoding account layouts
// and acquiring them over the wire are out of scope; the poller only calls
// FetchSnapshot.
type Source interface {
	FetchSnapshot() (Snapshot, error)
}

// Poller is a dlob.AccountSubscriber: Load fetches and applies one snapshot
// synchronously, and Start launches a supervised background loop that
// refetches on a fixed interval until Stop is called.
type Poller struct {
	source   Source
	target   *dlob.Dlob
	interval time.Duration

	t *tomb.Tomb
}

func NewPoller(source Source, target *dlob.Dlob, interval time.Duration) *Poller {
	return &Poller{source: source, target: target, interval: interval}
}

// SetTarget assigns the book the poller applies snapshots to. It exists to
// break the construction cycle where the Dlob.Builder needs a subscriber
// before the Dlob it returns exists: build the Poller first with a nil
// target, pass it to the builder, then call SetTarget with the built Dlob
// before Load.
func (p *Poller) SetTarget(target *dlob.Dlob) {
	p.target = target
}

// Load satisfies dlob.AccountSubscriber.
func (p *Poller) Load() error {
	snap, err := p.source.FetchSnapshot()
	if err != nil {
		return err
	}
	p.apply(snap)
	return nil
}

// apply inserts every order in the snapshot, tagging the batch with a
// generated trace id so the resulting log lines can be correlated back to
// one poll cycle, the way the teacher tags each order with its own UUID for
// tracking through the matching engine. An order already in the book under
// the same market, user and order id is replaced; orders absent from the
// snapshot are left in the book.
func (p *Poller) apply(snap Snapshot) {
	traceID := uuid.New().String()
	log.Debug().Str("traceId", traceID).Int("orders", len(snap.Orders)).Uint64("slot", snap.Slot).Msg("applying snapshot")

	for _, u := range snap.Orders {
		p.target.RemoveOrder(u.Order.MarketType, u.Order.MarketIndex, u.User, u.Order.OrderID)
		if err := p.target.InsertOrder(snap.Slot, u.User, u.Order); err != nil {
			log.Error().Str("traceId", traceID).Err(err).Uint32("orderId", u.Order.OrderID).Msg("insert_order failed")
		}
	}
}

// Start launches the refresh loop under tomb supervision, mirroring the
// teacher's WorkerPool.Setup/worker shape with a single supervised
// goroutine in place of a sized pool, since a demo poller has one source.
func (p *Poller) Start() *tomb.Tomb {
	p.t = new(tomb.Tomb)
	p.t.Go(p.run)
	return p.t
}

func (p *Poller) run() error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Msg("subscriber polling started")
	for {
		select {
		case <-p.t.Dying():
			return nil
		case <-ticker.C:
			snap, err := p.source.FetchSnapshot()
			if err != nil {
				log.Error().Err(err).Msg("fetch_snapshot failed")
				continue
			}
			p.apply(snap)
		}
	}
}

// Stop signals the background loop to exit and waits for it to return.
func (p *Poller) Stop() error {
	if p.t == nil {
		return nil
	}
	p.t.Kill(nil)
	return p.t.Wait()
}
