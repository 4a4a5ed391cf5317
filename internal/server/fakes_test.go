package server

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"needsmatch/internal/basket"
	"needsmatch/internal/events"
	"needsmatch/internal/store"
	"needsmatch/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// memStore is an in-memory stand-in for every repository the service uses.
type memStore struct {
	mu      sync.Mutex
	seq     int
	clock   time.Time
	users   map[string]*types.User
	needs   map[string]*types.Need
	items   []*types.BasketItem
	funding []*types.FundingRecord
	events  map[string]*types.Event
	signups []*types.EventSignup
}

func newMemStore() *memStore {
	return &memStore{
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		users:  map[string]*types.User{},
		needs:  map[string]*types.Need{},
		events: map[string]*types.Event{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

// tick hands out strictly increasing timestamps so ordering by creation
// time is deterministic.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) addUser(username string, role types.Role) *types.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := &types.User{ID: m.nextID("u"), Username: username, Role: role, CreatedAt: m.tick()}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addNeed(n *types.Need) *types.Need {
	m.mu.Lock()
	defer m.mu.Unlock()

	n.ID = m.nextID("n")
	n.CreatedAt = m.tick()
	if n.Priority == "" {
		n.Priority = types.PriorityNormal
	}
	m.needs[n.ID] = n
	return n
}

func (m *memStore) User(_ context.Context, userID string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *memStore) Login(_ context.Context, username string, role types.Role) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			u.Role = role
			clone := *u
			return &clone, nil
		}
	}

	u := &types.User{ID: m.nextID("u"), Username: username, Role: role, CreatedAt: m.tick()}
	m.users[u.ID] = u
	clone := *u
	return &clone, nil
}

func (m *memStore) Need(_ context.Context, needID string) (*types.Need, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.needs[needID]
	if !ok {
		return nil, types.ErrNeedNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *memStore) Needs(_ context.Context, filter types.NeedFilter, _ time.Time) ([]*types.Need, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*types.Need, 0, len(m.needs))
	for _, n := range m.needs {
		if filter.Priority != "" && n.Priority != filter.Priority {
			continue
		}
		if filter.Category != "" && n.Category != filter.Category {
			continue
		}
		if filter.ManagerID != "" && n.ManagerID != filter.ManagerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(n.Title), strings.ToLower(filter.Search)) {
			continue
		}
		clone := *n
		list = append(list, &clone)
	}
	slices.SortFunc(list, func(a, b *types.Need) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return list, nil
}

func (m *memStore) CreateNeed(_ context.Context, need *types.Need) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[need.ManagerID]; !ok {
		return types.ErrUserNotFound
	}
	need.ID = m.nextID("n")
	need.CreatedAt = m.tick()
	need.UpdatedAt = need.CreatedAt
	clone := *need
	m.needs[need.ID] = &clone
	return nil
}

func (m *memStore) UpdateNeed(_ context.Context, needID string, need *types.Need, columns []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.needs[needID]
	if !ok {
		return types.ErrNeedNotFound
	}
	if slices.Contains(columns, "quantity") && need.Quantity < current.QuantityFulfilled {
		return types.NewValidationError("quantity", "cannot be less than the quantity already fulfilled")
	}

	updated := *current
	for _, column := range columns {
		switch column {
		case "title":
			updated.Title = need.Title
		case "description":
			updated.Description = need.Description
		case "unit_cost":
			updated.UnitCost = need.UnitCost
		case "quantity":
			updated.Quantity = need.Quantity
		case "priority":
			updated.Priority = need.Priority
		case "category":
			updated.Category = need.Category
		case "org_type":
			updated.OrgType = need.OrgType
		case "deadline":
			updated.Deadline = need.Deadline
		case "perishable":
			updated.Perishable = need.Perishable
		case "bundle_tag":
			updated.BundleTag = need.BundleTag
		case "service_required":
			updated.ServiceRequired = need.ServiceRequired
		}
	}
	updated.UpdatedAt = m.tick()
	m.needs[needID] = &updated
	*need = updated
	return nil
}

func (m *memStore) DeleteNeed(_ context.Context, needID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.needs[needID]; !ok {
		return types.ErrNeedNotFound
	}
	delete(m.needs, needID)
	m.items = slices.DeleteFunc(m.items, func(i *types.BasketItem) bool { return i.NeedID == needID })
	m.funding = slices.DeleteFunc(m.funding, func(f *types.FundingRecord) bool { return f.NeedID == needID })
	for id, e := range m.events {
		if e.NeedID == needID {
			delete(m.events, id)
		}
	}
	return nil
}

func (m *memStore) Basket(_ context.Context, userID string) ([]*types.BasketEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]*types.BasketEntry, 0)
	for _, item := range m.items {
		if item.UserID != userID {
			continue
		}
		n := m.needs[item.NeedID]
		entries = append(entries, &types.BasketEntry{
			BasketItem: *item,
			NeedTitle:  n.Title,
			UnitCost:   n.UnitCost,
			Remaining:  n.Remaining(),
		})
	}
	return entries, nil
}

func (m *memStore) Item(_ context.Context, itemID string) (*types.BasketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range m.items {
		if item.ID == itemID {
			clone := *item
			return &clone, nil
		}
	}
	return nil, types.ErrBasketItemNotFound
}

func (m *memStore) Add(_ context.Context, userID, needID string, delta int) (*types.BasketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	need, ok := m.needs[needID]
	if !ok {
		return nil, types.ErrNeedNotFound
	}
	if _, ok := m.users[userID]; !ok {
		return nil, types.ErrUserNotFound
	}

	var existing *types.BasketItem
	for _, item := range m.items {
		if item.UserID == userID && item.NeedID == needID {
			existing = item
		}
	}

	current := 0
	if existing != nil {
		current = existing.Quantity
	}
	quantity, err := basket.CheckAdd(need, current, delta)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Quantity = quantity
		clone := *existing
		return &clone, nil
	}

	item := &types.BasketItem{ID: m.nextID("b"), UserID: userID, NeedID: needID, Quantity: quantity, CreatedAt: m.tick()}
	m.items = append(m.items, item)
	need.RequestCount++
	clone := *item
	return &clone, nil
}

func (m *memStore) SetQuantity(_ context.Context, itemID string, quantity int) (*types.BasketItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range m.items {
		if item.ID != itemID {
			continue
		}
		if err := basket.CheckQuantity(m.needs[item.NeedID], quantity); err != nil {
			return nil, err
		}
		item.Quantity = quantity
		clone := *item
		return &clone, nil
	}
	return nil, types.ErrBasketItemNotFound
}

func (m *memStore) Delete(_ context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.items)
	m.items = slices.DeleteFunc(m.items, func(i *types.BasketItem) bool { return i.ID == itemID })
	if len(m.items) == before {
		return types.ErrBasketItemNotFound
	}
	return nil
}

func (m *memStore) Clear(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.items)
	m.items = slices.DeleteFunc(m.items, func(i *types.BasketItem) bool { return i.UserID == userID })
	return int64(before - len(m.items)), nil
}

// Checkout validates and prices every line before touching state, then
// applies the writes only once beforeCommit succeeds.
func (m *memStore) Checkout(ctx context.Context, userID string, beforeCommit store.BeforeCommitFunc) (*types.CheckoutReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lines []basket.Line
	for _, item := range m.items {
		if item.UserID == userID {
			lines = append(lines, basket.Line{Item: item, Need: m.needs[item.NeedID]})
		}
	}
	if err := basket.ValidateCheckout(lines); err != nil {
		return nil, err
	}

	at := m.tick()
	receipt := &types.CheckoutReceipt{UserID: userID, Total: decimal.Zero}
	for _, line := range lines {
		record := &types.FundingRecord{
			ID:        m.nextID("f"),
			UserID:    userID,
			NeedID:    line.Need.ID,
			Quantity:  line.Item.Quantity,
			Amount:    basket.LineAmount(line.Need.UnitCost, line.Item.Quantity),
			CreatedAt: at,
		}
		receipt.Records = append(receipt.Records, record)
		receipt.Total = receipt.Total.Add(record.Amount)
	}

	if beforeCommit != nil {
		if err := beforeCommit(ctx, receipt); err != nil {
			return nil, err
		}
	}

	for i, line := range lines {
		line.Need.QuantityFulfilled += line.Item.Quantity
		m.funding = append(m.funding, receipt.Records[i])
	}
	m.items = slices.DeleteFunc(m.items, func(i *types.BasketItem) bool { return i.UserID == userID })

	return receipt, nil
}

func (m *memStore) fundingWhere(keep func(*types.FundingRecord) bool) []*types.FundingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]*types.FundingEntry, 0)
	for _, f := range m.funding {
		if !keep(f) {
			continue
		}
		entry := &types.FundingEntry{FundingRecord: *f}
		if n, ok := m.needs[f.NeedID]; ok {
			entry.NeedTitle = n.Title
		}
		if u, ok := m.users[f.UserID]; ok {
			entry.Username = u.Username
		}
		entries = append(entries, entry)
	}
	return entries
}

func (m *memStore) FundingByUser(_ context.Context, userID string) ([]*types.FundingEntry, error) {
	return m.fundingWhere(func(f *types.FundingRecord) bool { return f.UserID == userID }), nil
}

func (m *memStore) FundingByNeed(_ context.Context, needID string) ([]*types.FundingEntry, error) {
	return m.fundingWhere(func(f *types.FundingRecord) bool { return f.NeedID == needID }), nil
}

func (m *memStore) AllFunding(_ context.Context) ([]*types.FundingEntry, error) {
	return m.fundingWhere(func(*types.FundingRecord) bool { return true }), nil
}

func (m *memStore) Event(_ context.Context, eventID string) (*types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return nil, types.ErrEventNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *memStore) Events(_ context.Context, needID string) ([]*types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*types.Event, 0)
	for _, e := range m.events {
		if needID == "" || e.NeedID == needID {
			clone := *e
			list = append(list, &clone)
		}
	}
	slices.SortFunc(list, func(a, b *types.Event) int { return a.StartsAt.Compare(b.StartsAt) })
	return list, nil
}

func (m *memStore) CreateEvent(_ context.Context, e *types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.needs[e.NeedID]; !ok {
		return types.ErrNeedNotFound
	}
	e.ID = m.nextID("e")
	e.CreatedAt = m.tick()
	clone := *e
	m.events[e.ID] = &clone
	return nil
}

func (m *memStore) UpdateEvent(_ context.Context, eventID string, e *types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return types.ErrEventNotFound
	}
	clone := *e
	m.events[eventID] = &clone
	return nil
}

func (m *memStore) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return types.ErrEventNotFound
	}
	delete(m.events, eventID)
	return nil
}

func (m *memStore) eventSignups(eventID string) []*types.EventSignup {
	var list []*types.EventSignup
	for _, s := range m.signups {
		if s.EventID == eventID {
			list = append(list, s)
		}
	}
	return list
}

func (m *memStore) Signups(_ context.Context, eventID string) ([]*types.EventSignup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*types.EventSignup, 0)
	for _, s := range m.eventSignups(eventID) {
		clone := *s
		list = append(list, &clone)
	}
	return list, nil
}

func (m *memStore) Signup(_ context.Context, eventID, userID string) (*types.EventSignup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return nil, types.ErrEventNotFound
	}
	if _, ok := m.users[userID]; !ok {
		return nil, types.ErrUserNotFound
	}

	all := m.eventSignups(eventID)
	var current *types.EventSignup
	for _, s := range all {
		if s.UserID == userID {
			current = s
		}
	}

	confirmed, _ := events.Counts(all)
	status := events.SignupStatus(current, confirmed, e.VolunteerSlots)

	if current == nil {
		current = &types.EventSignup{EventID: eventID, UserID: userID, CreatedAt: m.tick()}
		m.signups = append(m.signups, current)
	}
	current.Status = status
	clone := *current
	return &clone, nil
}

func (m *memStore) Cancel(_ context.Context, eventID, userID string) (*types.EventSignup, *types.EventSignup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return nil, nil, types.ErrEventNotFound
	}

	all := m.eventSignups(eventID)
	var current *types.EventSignup
	for _, s := range all {
		if s.UserID == userID {
			current = s
		}
	}
	if current == nil {
		return nil, nil, types.ErrSignupNotFound
	}

	wasConfirmed := current.Status == types.SignupStatusConfirmed
	current.Status = types.SignupStatusCancelled
	cancelled := *current

	if !wasConfirmed {
		return &cancelled, nil, nil
	}

	confirmed, _ := events.Counts(all)
	next := events.NextInLine(all)
	if next == nil || confirmed >= e.VolunteerSlots {
		return &cancelled, nil, nil
	}
	next.Status = types.SignupStatusConfirmed
	promoted := *next
	return &cancelled, &promoted, nil
}

type failingCharger struct{ err error }

func (c failingCharger) Charge(context.Context, *types.CheckoutReceipt) (string, error) {
	return "", c.err
}

type fixedCharger struct{ ref string }

func (c fixedCharger) Charge(context.Context, *types.CheckoutReceipt) (string, error) {
	return c.ref, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
