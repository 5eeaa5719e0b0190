package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/common"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/lock"
	"github.com/noah-isme/pos-terminal/internal/obs"
	"github.com/noah-isme/pos-terminal/internal/pricing"
)

// RulesSource supplies the rule catalog a ticket is priced against.
type RulesSource interface {
	Rules(ctx context.Context) (catalog.Rules, error)
}

// Publisher receives the advisories raised by a repricing.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Locker serialises mutations of one ticket.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Operation names used for metrics, logs and notification envelopes.
const (
	OpAddItem       = "add_item"
	OpSetQuantity   = "set_quantity"
	OpRemoveLine    = "remove_line"
	OpSetMode       = "set_mode"
	OpSetDiscount   = "set_discount"
	OpClearDiscount = "clear_discount"
)

// Service owns the line list of every open ticket. Each mutation replaces the
// list wholesale with the output of a full pricing run.
type Service struct {
	store  Store
	rules  RulesSource
	locker Locker
	bus    Publisher
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// ServiceConfig groups Service dependencies. Locker and Publisher are optional.
type ServiceConfig struct {
	Store     Store
	Rules     RulesSource
	Locker    Locker
	Publisher Publisher
	Logger    zerolog.Logger
	Now       func() time.Time
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("ticket: store is required")
	}
	if cfg.Rules == nil {
		return nil, errors.New("ticket: rules source is required")
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:  cfg.Store,
		rules:  cfg.Rules,
		locker: cfg.Locker,
		bus:    cfg.Publisher,
		logger: cfg.Logger.With().Str("component", "ticket").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/pos-terminal/internal/ticket"),
		now:    now,
	}, nil
}

// Open starts an empty ticket in the given mode. An empty mode means retail.
func (s *Service) Open(ctx context.Context, mode string) (Ticket, error) {
	m := pricing.ModeRetail
	if mode != "" {
		parsed, ok := pricing.ParseMode(mode)
		if !ok {
			return Ticket{}, fmt.Errorf("unknown mode %q: %w", mode, ErrInvalidInput)
		}
		m = parsed
	}
	now := s.now()
	t := Ticket{
		ID:              uuid.NewString(),
		Mode:            m,
		DiscountPercent: decimal.Zero,
		Version:         1,
		OpenedAt:        now,
		UpdatedAt:       now,
	}
	if err := s.store.Save(ctx, t); err != nil {
		return Ticket{}, err
	}
	s.logger.Debug().Str("ticket_id", t.ID).Str("mode", string(m)).Msg("ticket opened")
	return t, nil
}

// Get returns the current state of a ticket.
func (s *Service) Get(ctx context.Context, id string) (Ticket, error) {
	if id == "" {
		return Ticket{}, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// AddItem puts units of a product on the ticket. Units join the product's
// existing default-priced line when there is one.
func (s *Service) AddItem(ctx context.Context, id string, in ItemInput) (Ticket, error) {
	if err := common.Validate.Struct(in); err != nil {
		return Ticket{}, common.BadRequest("invalid item", fmt.Errorf("%w: %v", ErrInvalidInput, err), common.ValidationDetails(err))
	}
	product := pricing.ProductID(in.ProductID)
	return s.mutate(ctx, id, OpAddItem, func(t *Ticket) error {
		if t.unitsOf(product)+in.Quantity > in.StockAvailable {
			return fmt.Errorf("%s: %d on ticket, %d more requested, %d available: %w",
				in.ProductID, t.unitsOf(product), in.Quantity, in.StockAvailable, ErrInsufficientStock)
		}
		t.refreshFacts(in)
		for i := range t.Lines {
			if t.Lines[i].ProductID == product && t.Lines[i].Class().IsDefault() {
				t.Lines[i].Quantity += in.Quantity
				return nil
			}
		}
		name := in.Name
		if name == "" {
			name = in.ProductID
		}
		t.Lines = append(t.Lines, pricing.LineItem{
			ID:                 pricing.NewLineID(),
			ProductID:          product,
			Name:               name,
			Quantity:           in.Quantity,
			UnitPrice:          in.RetailUnitPrice,
			RetailUnitPrice:    in.RetailUnitPrice,
			WholesaleUnitPrice: in.WholesaleUnitPrice,
			StockAvailable:     in.StockAvailable,
		})
		return nil
	})
}

// SetQuantity changes the quantity of a line; zero removes it. Gift lines are
// sized by their trigger and cannot be edited directly.
func (s *Service) SetQuantity(ctx context.Context, id string, lineID pricing.LineID, qty int) (Ticket, error) {
	if qty < 0 {
		return Ticket{}, fmt.Errorf("quantity must not be negative: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, OpSetQuantity, func(t *Ticket) error {
		i := t.findLine(lineID)
		if i < 0 {
			return fmt.Errorf("line %s: %w", lineID, ErrNotFound)
		}
		line := t.Lines[i]
		if line.Class() == pricing.ClassKitGift {
			return fmt.Errorf("line %s: %w", lineID, ErrLineLocked)
		}
		if qty == 0 {
			t.Lines = t.removeLine(i)
			return nil
		}
		if delta := qty - line.Quantity; delta > 0 && t.unitsOf(line.ProductID)+delta > line.StockAvailable {
			return fmt.Errorf("%s: %d available: %w", line.ProductID, line.StockAvailable, ErrInsufficientStock)
		}
		t.Lines[i].Quantity = qty
		return nil
	})
}

// RemoveLine drops a line and all of its units from the ticket.
func (s *Service) RemoveLine(ctx context.Context, id string, lineID pricing.LineID) (Ticket, error) {
	return s.mutate(ctx, id, OpRemoveLine, func(t *Ticket) error {
		i := t.findLine(lineID)
		if i < 0 {
			return fmt.Errorf("line %s: %w", lineID, ErrNotFound)
		}
		t.Lines = t.removeLine(i)
		return nil
	})
}

// SetMode switches the ticket between retail and wholesale pricing.
func (s *Service) SetMode(ctx context.Context, id, mode string) (Ticket, error) {
	m, ok := pricing.ParseMode(mode)
	if !ok {
		return Ticket{}, fmt.Errorf("unknown mode %q: %w", mode, ErrInvalidInput)
	}
	return s.mutate(ctx, id, OpSetMode, func(t *Ticket) error {
		t.Mode = m
		return nil
	})
}

// SetDiscount applies a blanket percentage discount to default-priced lines.
func (s *Service) SetDiscount(ctx context.Context, id string, percent decimal.Decimal) (Ticket, error) {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return Ticket{}, fmt.Errorf("discount %s outside 0..100: %w", percent, ErrInvalidInput)
	}
	return s.mutate(ctx, id, OpSetDiscount, func(t *Ticket) error {
		t.DiscountPercent = percent
		return nil
	})
}

// ClearDiscount removes the blanket discount.
func (s *Service) ClearDiscount(ctx context.Context, id string) (Ticket, error) {
	return s.mutate(ctx, id, OpClearDiscount, func(t *Ticket) error {
		t.DiscountPercent = decimal.Zero
		return nil
	})
}

// Close removes the ticket from the store and returns its final state.
func (s *Service) Close(ctx context.Context, id string) (Ticket, error) {
	var closed Ticket
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		t, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.Delete(ctx, id); err != nil {
			return err
		}
		closed = t
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.logger.Debug().Str("ticket_id", id).Int("lines", len(closed.Lines)).Msg("ticket closed")
	return closed, nil
}

func (s *Service) withLock(ctx context.Context, id string, fn func(context.Context) error) error {
	if id == "" {
		return ErrNotFound
	}
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, lock.TicketKey(id), 0, fn)
}

// mutate runs one edit under the ticket lock, reprices the result and stores
// it. Advisories are published after the lock is released.
func (s *Service) mutate(ctx context.Context, id, op string, edit func(*Ticket) error) (Ticket, error) {
	var updated Ticket
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		t, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := edit(&t); err != nil {
			return err
		}
		rules, err := s.rules.Rules(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
		}
		s.reprice(ctx, &t, rules, op)
		t.Version++
		t.UpdatedAt = s.now()
		if err := s.store.Save(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.publish(ctx, updated, op)
	return updated, nil
}

func (s *Service) reprice(ctx context.Context, t *Ticket, rules catalog.Rules, op string) {
	_, span := s.tracer.Start(ctx, "ticket.reprice", trace.WithAttributes(
		attribute.String("ticket.id", t.ID),
		attribute.String("ticket.operation", op),
		attribute.String("ticket.mode", string(t.Mode)),
		attribute.Int("ticket.lines_in", len(t.Lines)),
	))
	defer span.End()

	start := time.Now()
	res := pricing.Run(pricing.Input{
		Items:           t.Lines,
		KitRules:        rules.Kits,
		PromotionRules:  rules.Promotions,
		Mode:            t.Mode,
		DiscountPercent: t.DiscountPercent,
	})
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	t.Lines = res.Items
	t.Promotions = res.Promotions
	t.Notifications = res.Notifications

	ruleIDs := make([]string, 0, len(res.Promotions))
	for _, p := range res.Promotions {
		ruleIDs = append(ruleIDs, p.Ref.RuleID)
	}
	obs.ObservePricingRun(op, elapsed, ruleIDs)

	span.SetAttributes(
		attribute.Int("ticket.lines_out", len(res.Items)),
		attribute.Int("ticket.promotions", len(res.Promotions)),
		attribute.Int("ticket.notifications", len(res.Notifications)),
	)
	span.SetStatus(codes.Ok, "")
	s.logger.Debug().
		Str("ticket_id", t.ID).
		Str("operation", op).
		Int("lines", len(res.Items)).
		Int("promotions", len(res.Promotions)).
		Int("notifications", len(res.Notifications)).
		Float64("duration_ms", elapsed).
		Msg("ticket repriced")
}

func (s *Service) publish(ctx context.Context, t Ticket, op string) {
	if s.bus == nil || len(t.Notifications) == 0 {
		return
	}
	err := s.bus.Publish(ctx, events.Envelope{
		TicketID:      t.ID,
		Version:       t.Version,
		Operation:     op,
		Notifications: t.Notifications,
		OccurredAt:    t.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("ticket_id", t.ID).Str("operation", op).Msg("notification delivery failed")
	}
}
