package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/order-financials/internal/gst"
	"github.com/noah-isme/order-financials/internal/lineitem"
	"github.com/noah-isme/order-financials/internal/lock"
	"github.com/noah-isme/order-financials/internal/obs"
)

var (
	// ErrNotFound is returned when a draft or one of its rows does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a request cannot identify what to change.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable is returned while the draft store is failing fast.
	ErrUnavailable = errors.New("draft store unavailable")
)

// CreateDraftInput opens a draft for a billing/shipping pair.
type CreateDraftInput struct {
	BillingState  *string
	ShippingState *string
}

// ItemInput adds a SKU row. GST is optional; when nil the draft's regime percentages are used.
type ItemInput struct {
	SKUID           string
	SKUName         string
	SKUCode         string
	Quantity        float64
	UnitPrice       float64
	DiscountPercent float64
	GST             *gst.Percentages
	Promotion       lineitem.Promotion
}

// ItemPatch edits a row. Nil fields are left unchanged; each GST component is overlaid on the
// row's stored percentages while the draft lock is held.
type ItemPatch struct {
	Quantity        *float64
	UnitPrice       *float64
	DiscountPercent *float64
	CGSTPercent     *float64
	SGSTPercent     *float64
	IGSTPercent     *float64
	Promotion       *lineitem.Promotion
}

// Service runs the draft workflow: classify once per draft, stamp the percentages on each
// line, and recompute a line in full whenever one of its inputs changes.
type Service struct {
	Classifier gst.Classifier
	Calculator gst.Calculator
	Store      Store
	Locker     lock.Locker
	Logger     zerolog.Logger
	Now        func() time.Time
	NewID      func() string
}

// NewService wires a service with default clock and ID generator and an in-process locker.
// Replicas sharing a store need a shared Locker instead.
func NewService(classifier gst.Classifier, calculator gst.Calculator, store Store, logger zerolog.Logger) *Service {
	return &Service{
		Classifier: classifier,
		Calculator: calculator,
		Store:      store,
		Locker:     lock.NewLocal(),
		Logger:     logger,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) store() (Store, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("draft store not configured")
	}
	return s.Store, nil
}

func (s *Service) classify(billing, shipping *string) gst.Regime {
	regime := s.Classifier.DetermineRegime(billing, shipping)
	obs.ObserveClassification(string(regime))
	return regime
}

// CreateDraft classifies the jurisdiction pair and stores an empty draft.
func (s *Service) CreateDraft(ctx context.Context, in CreateDraftInput) (*Draft, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	now := s.now()
	d := &Draft{
		ID:            s.newID(),
		BillingState:  cloneString(in.BillingState),
		ShippingState: cloneString(in.ShippingState),
		Regime:        s.classify(in.BillingState, in.ShippingState),
		Items:         []lineitem.Item{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = store.Save(ctx, d)
	obs.ObserveDraftOperation("create", err)
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	s.Logger.Debug().Str("draft_id", d.ID).Str("regime", string(d.Regime)).Msg("draft created")
	return d, nil
}

// Get loads a draft together with its summary.
func (s *Service) Get(ctx context.Context, draftID string) (*Draft, Summary, error) {
	d, err := s.load(ctx, draftID)
	if err != nil {
		return nil, Summary{}, err
	}
	return d, d.Summary(), nil
}

// AddItem appends a row priced with the draft's regime unless explicit percentages are given.
func (s *Service) AddItem(ctx context.Context, draftID string, in ItemInput) (*Draft, lineitem.Item, error) {
	var (
		d    *Draft
		item lineitem.Item
	)
	err := s.locked(ctx, draftID, func(ctx context.Context) error {
		var err error
		d, item, err = s.addItem(ctx, draftID, in)
		return err
	})
	if err != nil {
		return nil, lineitem.Item{}, err
	}
	return d, item, nil
}

// UpdateItem patches a row's inputs and recomputes it in full.
func (s *Service) UpdateItem(ctx context.Context, draftID, rowID string, patch ItemPatch) (*Draft, lineitem.Item, error) {
	var (
		d    *Draft
		item lineitem.Item
	)
	err := s.locked(ctx, draftID, func(ctx context.Context) error {
		var err error
		d, item, err = s.updateItem(ctx, draftID, rowID, patch)
		return err
	})
	if err != nil {
		return nil, lineitem.Item{}, err
	}
	return d, item, nil
}

// RemoveItem drops a row from the draft.
func (s *Service) RemoveItem(ctx context.Context, draftID, rowID string) (*Draft, error) {
	return s.lockedDraft(ctx, draftID, func(ctx context.Context) (*Draft, error) {
		return s.removeItem(ctx, draftID, rowID)
	})
}

// ChangeJurisdiction re-classifies the draft and rewrites the GST percentages on every row.
func (s *Service) ChangeJurisdiction(ctx context.Context, draftID string, billing, shipping *string) (*Draft, error) {
	return s.lockedDraft(ctx, draftID, func(ctx context.Context) (*Draft, error) {
		return s.changeJurisdiction(ctx, draftID, billing, shipping)
	})
}

// Recalculate recomputes every row from its stored inputs. Running it repeatedly changes nothing.
func (s *Service) Recalculate(ctx context.Context, draftID string) (*Draft, error) {
	return s.lockedDraft(ctx, draftID, func(ctx context.Context) (*Draft, error) {
		return s.recalculate(ctx, draftID)
	})
}

// Delete discards a draft.
func (s *Service) Delete(ctx context.Context, draftID string) error {
	return s.locked(ctx, draftID, func(ctx context.Context) error {
		return s.deleteDraft(ctx, draftID)
	})
}

// locked serialises read-modify-write cycles on one draft. Without a Locker edits run unguarded.
func (s *Service) locked(ctx context.Context, draftID string, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return s.Locker.WithLock(ctx, "draft:"+draftID, fn)
}

func (s *Service) lockedDraft(ctx context.Context, draftID string, fn func(context.Context) (*Draft, error)) (*Draft, error) {
	var d *Draft
	err := s.locked(ctx, draftID, func(ctx context.Context) error {
		var err error
		d, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) addItem(ctx context.Context, draftID string, in ItemInput) (*Draft, lineitem.Item, error) {
	if strings.TrimSpace(in.SKUID) == "" {
		return nil, lineitem.Item{}, fmt.Errorf("sku id required: %w", ErrInvalidInput)
	}
	d, err := s.load(ctx, draftID)
	if err != nil {
		return nil, lineitem.Item{}, err
	}
	pct := s.Calculator.Percentages(d.Regime)
	if in.GST != nil {
		pct = *in.GST
	}
	item := lineitem.Apply(lineitem.Item{
		RowID:   s.newID(),
		SKUID:   strings.TrimSpace(in.SKUID),
		SKUName: in.SKUName,
		SKUCode: in.SKUCode,
		Commercial: lineitem.Commercial{
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			DiscountPercent: in.DiscountPercent,
			Percentages:     pct,
		},
		Promotion: in.Promotion,
	})
	d.Items = append(d.Items, item)
	if err := s.save(ctx, "add_item", d); err != nil {
		return nil, lineitem.Item{}, err
	}
	obs.ObserveRecalculation("add_item", 1)
	return d, item, nil
}

func (s *Service) updateItem(ctx context.Context, draftID, rowID string, patch ItemPatch) (*Draft, lineitem.Item, error) {
	d, err := s.load(ctx, draftID)
	if err != nil {
		return nil, lineitem.Item{}, err
	}
	idx := d.indexOf(rowID)
	if idx < 0 {
		return nil, lineitem.Item{}, fmt.Errorf("row %s: %w", rowID, ErrNotFound)
	}
	item := d.Items[idx]
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		item.UnitPrice = *patch.UnitPrice
	}
	if patch.DiscountPercent != nil {
		item.DiscountPercent = *patch.DiscountPercent
	}
	if patch.CGSTPercent != nil {
		item.CGST = *patch.CGSTPercent
	}
	if patch.SGSTPercent != nil {
		item.SGST = *patch.SGSTPercent
	}
	if patch.IGSTPercent != nil {
		item.IGST = *patch.IGSTPercent
	}
	if patch.Promotion != nil {
		item.Promotion = *patch.Promotion
	}
	item = lineitem.Apply(item)
	d.Items[idx] = item
	if err := s.save(ctx, "update_item", d); err != nil {
		return nil, lineitem.Item{}, err
	}
	obs.ObserveRecalculation("update_item", 1)
	return d, item, nil
}

func (s *Service) removeItem(ctx context.Context, draftID, rowID string) (*Draft, error) {
	d, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	idx := d.indexOf(rowID)
	if idx < 0 {
		return nil, fmt.Errorf("row %s: %w", rowID, ErrNotFound)
	}
	d.Items = append(d.Items[:idx], d.Items[idx+1:]...)
	if err := s.save(ctx, "remove_item", d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) changeJurisdiction(ctx context.Context, draftID string, billing, shipping *string) (*Draft, error) {
	d, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	d.BillingState = cloneString(billing)
	d.ShippingState = cloneString(shipping)
	d.Regime = s.classify(billing, shipping)
	pct := s.Calculator.Percentages(d.Regime)
	for i := range d.Items {
		d.Items[i].Percentages = pct
	}
	d.Items = lineitem.ApplyAll(d.Items)
	if err := s.save(ctx, "change_jurisdiction", d); err != nil {
		return nil, err
	}
	obs.ObserveRecalculation("jurisdiction", len(d.Items))
	s.Logger.Debug().Str("draft_id", d.ID).Str("regime", string(d.Regime)).Int("items", len(d.Items)).Msg("draft jurisdiction changed")
	return d, nil
}

func (s *Service) recalculate(ctx context.Context, draftID string) (*Draft, error) {
	d, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	d.Items = lineitem.ApplyAll(d.Items)
	if err := s.save(ctx, "recalculate", d); err != nil {
		return nil, err
	}
	obs.ObserveRecalculation("recalculate", len(d.Items))
	return d, nil
}

func (s *Service) deleteDraft(ctx context.Context, draftID string) error {
	store, err := s.store()
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, draftID); err != nil {
		return err
	}
	err = store.Delete(ctx, draftID)
	obs.ObserveDraftOperation("delete", err)
	return err
}

func (s *Service) load(ctx context.Context, draftID string) (*Draft, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(draftID) == "" {
		return nil, fmt.Errorf("draft id required: %w", ErrInvalidInput)
	}
	d, err := store.Get(ctx, draftID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("draft %s: %w", draftID, ErrNotFound)
		}
		return nil, err
	}
	if d.Items == nil {
		d.Items = []lineitem.Item{}
	}
	return d, nil
}

func (s *Service) save(ctx context.Context, operation string, d *Draft) error {
	store, err := s.store()
	if err != nil {
		return err
	}
	d.UpdatedAt = s.now()
	err = store.Save(ctx, d)
	obs.ObserveDraftOperation(operation, err)
	if err != nil {
		s.Logger.Error().Err(err).Str("draft_id", d.ID).Str("operation", operation).Msg("save draft")
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}
