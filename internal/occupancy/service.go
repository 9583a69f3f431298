// Package occupancy coordinates seat claims with pass entitlements. It is
// the only place that changes a seat and its pass together.
package occupancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-seating/internal/clock"
	"ms-seating/internal/logger"
	"ms-seating/internal/models"
	"ms-seating/internal/passes"
)

// errStillLive aborts a sweep release whose pass turned out to have time
// left once read inside the transaction.
var errStillLive = errors.New("occupancy still has entitlement")

// Occupancy is a successful seat claim.
type Occupancy struct {
	SeatID    int64         `json:"seat_id"`
	PassID    string        `json:"user_pass_id"`
	StartAt   time.Time     `json:"start_at"`
	Remaining time.Duration `json:"-"`
}

// ReleaseResult describes how an occupancy ended.
type ReleaseResult struct {
	SeatID int64  `json:"seat_id"`
	PassID string `json:"user_pass_id"`
	// Destroyed is true when the pass was exhausted and deleted, or was
	// already gone.
	Destroyed bool                   `json:"destroyed"`
	Remaining time.Duration          `json:"-"`
	Reason    models.SeatEventReason `json:"reason"`
}

// SeatView is one row of the seat status board.
type SeatView struct {
	SeatID           int64      `json:"seat_id"`
	Label            string     `json:"label"`
	Occupied         bool       `json:"is_occupied"`
	UserPassID       *string    `json:"user_pass_id,omitempty"`
	StartAt          *time.Time `json:"start_at,omitempty"`
	RemainingMinutes int64      `json:"remaining_minutes"`
}

// OwnedPass is a pass as shown to its owner.
type OwnedPass struct {
	models.PassInstance
	Name             string          `json:"name"`
	Kind             models.PassKind `json:"pass_type"`
	InUse            bool            `json:"in_use"`
	RemainingMinutes int64           `json:"remaining_minutes"`
}

// SweepReport lists the occupancies a sweep ended and those still live.
type SweepReport struct {
	Freed []ReleaseResult
	Live  []SeatView
}

type Service struct {
	store     Store
	clock     clock.Clock
	log       *logger.Logger
	publisher EventPublisher
	purchases PurchaseRecorder
}

type Option func(*Service)

// WithPublisher sets where seat status events go. Without it events are
// dropped.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithPurchaseRecorder sets where purchase logs go. Without it purchases
// are not logged.
func WithPurchaseRecorder(r PurchaseRecorder) Option {
	return func(s *Service) { s.purchases = r }
}

func NewService(store Store, clk clock.Clock, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		clock:     clk,
		log:       log,
		publisher: noopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------- PASSES ----------------

func (s *Service) ListCatalog(ctx context.Context) ([]models.PassDefinition, error) {
	return s.store.Passes().ListDefinitions(ctx)
}

// IssuePass sells definitionID to ownerID.
func (s *Service) IssuePass(ctx context.Context, ownerID string, definitionID int64) (*models.PassInstance, error) {
	def, err := s.store.Passes().GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p, err := passes.Issue(ownerID, *def, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Passes().CreatePass(ctx, p); err != nil {
		return nil, fmt.Errorf("create pass: %w", err)
	}
	s.log.LogPass("ISSUE", p.ID, fmt.Sprintf("%s issued to %s", def.Name, ownerID))

	if s.purchases != nil {
		entry := models.PurchaseLog{
			OwnerID:      ownerID,
			DefinitionID: def.ID,
			UserPassID:   p.ID,
			Price:        def.Price,
			PurchasedAt:  now,
		}
		if err := s.purchases.RecordPurchase(ctx, entry); err != nil {
			s.log.Error("PASS", fmt.Sprintf("Failed to record purchase of %s: %v", p.ID, err))
		}
	}
	return &p, nil
}

// GetOwnedPass returns passID if it belongs to ownerID.
func (s *Service) GetOwnedPass(ctx context.Context, ownerID, passID string) (*models.PassInstance, error) {
	p, err := s.store.Passes().GetPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", models.ErrPassNotFound, passID)
	}
	return p, nil
}

// ListPurchases returns ownerID's purchase history, newest first. Purchases
// recorded through Kafka show up once the recorder has caught up.
func (s *Service) ListPurchases(ctx context.Context, ownerID string) ([]models.PurchaseLog, error) {
	return s.store.Passes().ListPurchases(ctx, ownerID)
}

// ListOwnerPasses lists ownerID's passes with their live remaining time.
// Passes found exhausted are destroyed on the way and left out.
func (s *Service) ListOwnerPasses(ctx context.Context, ownerID string) ([]OwnedPass, error) {
	list, err := s.store.Passes().ListPassesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defs, err := s.store.Passes().ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.PassDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	now := s.clock.Now()
	out := make([]OwnedPass, 0, len(list))
	for _, p := range list {
		since, err := s.occupiedSince(ctx, p)
		if err != nil {
			return nil, err
		}
		if passes.IsExhausted(p, now, since) {
			if err := s.expirePass(ctx, p, now); err != nil {
				return nil, err
			}
			continue
		}
		def := byID[p.DefinitionID]
		out = append(out, OwnedPass{
			PassInstance:     p,
			Name:             def.Name,
			Kind:             def.Kind,
			InUse:            p.IsActive,
			RemainingMinutes: int64(passes.Remaining(p, now, since) / time.Minute),
		})
	}
	return out, nil
}

// occupiedSince is the start of p's current occupancy, nil when p is not
// seated or its seat no longer points back at it.
func (s *Service) occupiedSince(ctx context.Context, p models.PassInstance) (*time.Time, error) {
	if !p.IsActive || p.SeatID == nil {
		return nil, nil
	}
	seat, err := s.store.Seats().GetSeat(ctx, *p.SeatID)
	if errors.Is(err, models.ErrSeatNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !seat.Occupied || seat.UserPassID == nil || *seat.UserPassID != p.ID {
		return nil, nil
	}
	return seat.StartAt, nil
}

// expirePass ends an exhausted pass: through the release path when it is
// seated, by deleting it otherwise.
func (s *Service) expirePass(ctx context.Context, p models.PassInstance, now time.Time) error {
	if p.IsActive && p.SeatID != nil {
		_, err := s.release(ctx, *p.SeatID, now, releaseOpts{
			passID:        p.ID,
			reason:        models.SeatEventExpired,
			onlyExhausted: true,
		})
		if err == nil || errors.Is(err, models.ErrNotOccupied) || errors.Is(err, errStillLive) {
			return nil
		}
		if !errors.Is(err, models.ErrSeatNotFound) {
			return err
		}
	}
	if err := s.store.Passes().DeletePass(ctx, p.ID); err != nil {
		return fmt.Errorf("delete expired pass %s: %w", p.ID, err)
	}
	s.log.LogPass("EXPIRE", p.ID, "exhausted pass removed")
	return nil
}

// ---------------- OCCUPANCY ----------------

// Occupy seats passID on seatID for ownerID. On any error nothing changes,
// except that a pass found already exhausted is destroyed.
func (s *Service) Occupy(ctx context.Context, ownerID string, seatID int64, passID string) (*Occupancy, error) {
	p, err := s.GetOwnedPass(ctx, ownerID, passID)
	if err != nil {
		return nil, err
	}
	if p.IsActive {
		return nil, fmt.Errorf("%w: %s", models.ErrPassAlreadySeated, passID)
	}

	now := s.clock.Now()
	if passes.IsExhausted(*p, now, nil) {
		if err := s.store.Passes().DeletePass(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("delete expired pass %s: %w", p.ID, err)
		}
		s.log.LogPass("EXPIRE", p.ID, "exhausted pass removed on occupy")
		return nil, fmt.Errorf("%w: %s", models.ErrPassExpired, passID)
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, ps PassStore, ss SeatStore) error {
		if err := ps.MarkActive(ctx, passID, seatID); err != nil {
			return err
		}
		return ss.TryOccupy(ctx, seatID, passID, now)
	})
	if err != nil {
		return nil, err
	}

	occ := &Occupancy{
		SeatID:    seatID,
		PassID:    passID,
		StartAt:   now,
		Remaining: passes.Remaining(*p, now, &now),
	}
	s.log.LogSeat("OCCUPY", seatID, fmt.Sprintf("pass %s, %s left", passID, occ.Remaining))
	s.publish(ctx, models.NewSeatStatusEvent(seatID, passID, models.SeatEventOccupied, occ.Remaining, now))
	return occ, nil
}

// Release ends the occupancy on seatID and charges its pass.
func (s *Service) Release(ctx context.Context, seatID int64) (*ReleaseResult, error) {
	return s.release(ctx, seatID, s.clock.Now(), releaseOpts{reason: models.SeatEventReleased})
}

type releaseOpts struct {
	// passID, when set, restricts the release to that occupant.
	passID string
	reason models.SeatEventReason
	// onlyExhausted aborts with errStillLive unless the pass is exhausted.
	onlyExhausted bool
}

func (s *Service) release(ctx context.Context, seatID int64, now time.Time, opts releaseOpts) (*ReleaseResult, error) {
	var res ReleaseResult

	err := s.store.RunInTx(ctx, func(ctx context.Context, ps PassStore, ss SeatStore) error {
		res = ReleaseResult{SeatID: seatID, Reason: opts.reason}

		seat, err := ss.GetSeat(ctx, seatID)
		if err != nil {
			return err
		}
		if !seat.Occupied || seat.UserPassID == nil || seat.StartAt == nil {
			return fmt.Errorf("%w: %d", models.ErrNotOccupied, seatID)
		}
		passID := *seat.UserPassID
		if opts.passID != "" && opts.passID != passID {
			return fmt.Errorf("%w: %d", models.ErrNotOccupied, seatID)
		}
		res.PassID = passID

		// Claim exactly the occupancy read above. If it ended, or the pass
		// was re-seated here since, this fails and nothing is charged.
		if err := ss.Vacate(ctx, seatID, passID, *seat.StartAt); err != nil {
			return err
		}

		p, err := ps.GetPass(ctx, passID)
		if errors.Is(err, models.ErrPassNotFound) {
			res.Destroyed = true
			res.Reason = models.SeatEventRepaired
			return nil
		}
		if err != nil {
			return err
		}

		out := passes.DebitOnRelease(*p, now, seat.StartAt)
		if opts.onlyExhausted && !out.Destroy {
			return errStillLive
		}
		if out.Destroy {
			res.Destroyed = true
			return ps.DeletePass(ctx, passID)
		}
		res.Remaining = out.Remaining
		return ps.UpdatePass(ctx, out.Pass)
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("pass %s, %s left", res.PassID, res.Remaining)
	if res.Destroyed {
		msg = fmt.Sprintf("pass %s destroyed", res.PassID)
	}
	s.log.LogSeat(string(res.Reason), seatID, msg)
	s.publish(ctx, models.NewSeatStatusEvent(seatID, res.PassID, res.Reason, res.Remaining, now))
	return &res, nil
}

// ---------------- EXPIRY ----------------

// Sweep ends every occupancy whose pass is exhausted or gone. Occupancies
// released concurrently are skipped.
func (s *Service) Sweep(ctx context.Context) (*SweepReport, error) {
	return s.sweep(ctx, s.clock.Now())
}

// sweep judges every occupancy against the single instant now.
func (s *Service) sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	started := time.Now()
	occupied, err := s.store.Seats().ListOccupied(ctx)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Freed: []ReleaseResult{}, Live: []SeatView{}}
	for _, seat := range occupied {
		freed, live, err := s.sweepSeat(ctx, seat, now)
		if err != nil {
			return nil, err
		}
		if freed != nil {
			report.Freed = append(report.Freed, *freed)
		}
		if live != nil {
			report.Live = append(report.Live, *live)
		}
	}
	s.log.LogSweep(len(report.Freed), len(report.Live), time.Since(started))
	return report, nil
}

// SweepSeat ends the occupancy on seatID if its pass is exhausted. It
// returns nil when the seat is vacant or still live.
func (s *Service) SweepSeat(ctx context.Context, seatID int64) (*ReleaseResult, error) {
	seat, err := s.store.Seats().GetSeat(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if !seat.Occupied {
		return nil, nil
	}
	freed, _, err := s.sweepSeat(ctx, *seat, s.clock.Now())
	return freed, err
}

func (s *Service) sweepSeat(ctx context.Context, seat models.Seat, now time.Time) (*ReleaseResult, *SeatView, error) {
	if seat.UserPassID == nil || seat.StartAt == nil {
		if err := s.store.Seats().Free(ctx, seat.ID); err != nil {
			return nil, nil, err
		}
		s.log.LogSeat("REPAIR", seat.ID, "occupied without a pass, freed")
		return &ReleaseResult{SeatID: seat.ID, Destroyed: true, Reason: models.SeatEventRepaired}, nil, nil
	}

	p, err := s.store.Passes().GetPass(ctx, *seat.UserPassID)
	if err != nil && !errors.Is(err, models.ErrPassNotFound) {
		return nil, nil, err
	}
	if p != nil && !passes.IsExhausted(*p, now, seat.StartAt) {
		view := seatView(seat, p, now)
		return nil, &view, nil
	}

	res, err := s.release(ctx, seat.ID, now, releaseOpts{
		passID:        *seat.UserPassID,
		reason:        models.SeatEventExpired,
		onlyExhausted: true,
	})
	switch {
	case err == nil:
		return res, nil, nil
	case errors.Is(err, models.ErrNotOccupied), errors.Is(err, models.ErrSeatNotFound), errors.Is(err, errStillLive):
		return nil, nil, nil
	}
	return nil, nil, err
}

// SeatStatus sweeps, then reports every seat with its live remaining time.
// Sweep and report use the same instant, so no seat is reported occupied
// with nothing left.
func (s *Service) SeatStatus(ctx context.Context) ([]SeatView, error) {
	now := s.clock.Now()
	if _, err := s.sweep(ctx, now); err != nil {
		return nil, err
	}

	seats, err := s.store.Seats().ListSeats(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]SeatView, 0, len(seats))
	for _, seat := range seats {
		var p *models.PassInstance
		if seat.Occupied && seat.UserPassID != nil {
			p, err = s.store.Passes().GetPass(ctx, *seat.UserPassID)
			if err != nil && !errors.Is(err, models.ErrPassNotFound) {
				return nil, err
			}
		}
		views = append(views, seatView(seat, p, now))
	}
	return views, nil
}

// ProvisionSeats makes sure a seat exists for every label.
func (s *Service) ProvisionSeats(ctx context.Context, labels ...string) ([]models.Seat, error) {
	return s.store.Seats().ProvisionSeats(ctx, labels...)
}

func seatView(seat models.Seat, p *models.PassInstance, now time.Time) SeatView {
	v := SeatView{
		SeatID:     seat.ID,
		Label:      seat.Label,
		Occupied:   seat.Occupied,
		UserPassID: seat.UserPassID,
		StartAt:    seat.StartAt,
	}
	if seat.Occupied && p != nil {
		v.RemainingMinutes = int64(passes.Remaining(*p, now, seat.StartAt) / time.Minute)
	}
	return v
}

func (s *Service) publish(ctx context.Context, e models.SeatStatusEvent) {
	if err := s.publisher.PublishSeatEvent(ctx, e); err != nil {
		s.log.Error("EVENTS", fmt.Sprintf("Failed to publish seat %d %s event: %v", e.SeatID, e.Reason, err))
	}
}
