package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"needsmatch/internal/db"
	"needsmatch/internal/utils"
	"needsmatch/pkg/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const testDatabaseEnv = "NEEDSMATCH_TEST_DATABASE_URL"

// testPool connects to the database named by NEEDSMATCH_TEST_DATABASE_URL
// and migrates a throwaway schema that is dropped when the test ends.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set, skipping postgres test", testDatabaseEnv)
	}

	ctx := context.Background()
	schema := "needsmatch_test_" + strings.ToLower(utils.NanoIDSize(10))

	pool, err := db.Connect(ctx, &types.Config{DatabaseURL: url, DatabaseSchema: schema})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	if err := db.Migrate(ctx, pool, schema); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
		pool.Close()
	})

	return pool
}

type fixture struct {
	users   *UserRepository
	needs   *NeedRepository
	basket  *BasketRepository
	funding *FundingRepository
	events  *EventRepository

	manager *types.User
	helper  *types.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pool := testPool(t)
	f := &fixture{
		users:   NewUserRepository(pool),
		needs:   NewNeedRepository(pool),
		basket:  NewBasketRepository(pool),
		funding: NewFundingRepository(pool),
		events:  NewEventRepository(pool),
	}

	var err error
	ctx := context.Background()
	if f.manager, err = f.users.Login(ctx, "admin", types.RoleManager); err != nil {
		t.Fatalf("Failed to login manager: %v", err)
	}
	if f.helper, err = f.users.Login(ctx, "helper", types.RoleHelper); err != nil {
		t.Fatalf("Failed to login helper: %v", err)
	}

	return f
}

func (f *fixture) need(t *testing.T, title string, unitCost string, quantity int) *types.Need {
	t.Helper()

	need := &types.Need{
		ManagerID: f.manager.ID,
		Title:     title,
		UnitCost:  decimal.RequireFromString(unitCost),
		Quantity:  quantity,
		Priority:  types.PriorityNormal,
		Category:  "food",
	}
	if err := f.needs.CreateNeed(context.Background(), need); err != nil {
		t.Fatalf("Failed to create need: %v", err)
	}
	return need
}

func TestLogin_ReusesUser(t *testing.T) {
	f := newFixture(t)

	again, err := f.users.Login(context.Background(), "helper", types.RoleHelper)
	if err != nil {
		t.Fatalf("Failed to login: %v", err)
	}

	if again.ID != f.helper.ID {
		t.Errorf("Expected the same user id %s, got %s", f.helper.ID, again.ID)
	}
}

func TestBasketAdd_CombinesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	need := f.need(t, "Rice", "2.50", 10)

	first, err := f.basket.Add(ctx, f.helper.ID, need.ID, 4)
	if err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	second, err := f.basket.Add(ctx, f.helper.ID, need.ID, 3)
	if err != nil {
		t.Fatalf("Failed to add again: %v", err)
	}

	if second.ID != first.ID || second.Quantity != 7 {
		t.Errorf("Expected line %s with quantity 7, got %s with %d", first.ID, second.ID, second.Quantity)
	}

	_, err = f.basket.Add(ctx, f.helper.ID, need.ID, 4)
	var availErr *types.AvailabilityError
	if !errors.As(err, &availErr) {
		t.Fatalf("Expected availability error, got %v", err)
	}

	stored, err := f.needs.Need(ctx, need.ID)
	if err != nil {
		t.Fatalf("Failed to fetch need: %v", err)
	}
	if stored.RequestCount != 1 {
		t.Errorf("Expected request count 1, got %d", stored.RequestCount)
	}
}

func TestCheckout_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rice := f.need(t, "Rice", "2.50", 10)
	beans := f.need(t, "Beans", "1.25", 5)

	if _, err := f.basket.Add(ctx, f.helper.ID, rice.ID, 4); err != nil {
		t.Fatalf("Failed to add rice: %v", err)
	}
	if _, err := f.basket.Add(ctx, f.helper.ID, beans.ID, 2); err != nil {
		t.Fatalf("Failed to add beans: %v", err)
	}

	declined := errors.New("card declined")
	_, err := f.funding.Checkout(ctx, f.helper.ID, func(context.Context, *types.CheckoutReceipt) error {
		return declined
	})
	if !errors.Is(err, declined) {
		t.Fatalf("Expected declined error, got %v", err)
	}

	stored, _ := f.needs.Need(ctx, rice.ID)
	if stored.QuantityFulfilled != 0 {
		t.Errorf("Expected rollback to leave rice unfulfilled, got %d", stored.QuantityFulfilled)
	}
	entries, _ := f.basket.Basket(ctx, f.helper.ID)
	if len(entries) != 2 {
		t.Errorf("Expected basket to survive the rollback, got %d lines", len(entries))
	}

	receipt, err := f.funding.Checkout(ctx, f.helper.ID, nil)
	if err != nil {
		t.Fatalf("Failed to checkout: %v", err)
	}

	if len(receipt.Records) != 2 {
		t.Fatalf("Expected 2 funding records, got %d", len(receipt.Records))
	}
	if !receipt.Total.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("Expected total 12.50, got %s", receipt.Total)
	}

	stored, _ = f.needs.Need(ctx, rice.ID)
	if stored.QuantityFulfilled != 4 {
		t.Errorf("Expected rice fulfilled 4, got %d", stored.QuantityFulfilled)
	}
	entries, _ = f.basket.Basket(ctx, f.helper.ID)
	if len(entries) != 0 {
		t.Errorf("Expected empty basket after checkout, got %d lines", len(entries))
	}

	_, err = f.funding.Checkout(ctx, f.helper.ID, nil)
	if !errors.Is(err, types.ErrEmptyBasket) {
		t.Errorf("Expected empty basket error, got %v", err)
	}
}

func TestDeleteNeed_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	need := f.need(t, "Blankets", "15.00", 3)

	if _, err := f.basket.Add(ctx, f.helper.ID, need.ID, 1); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	event := &types.Event{
		NeedID:         need.ID,
		Title:          "Blanket drive",
		StartsAt:       time.Now().Add(48 * time.Hour),
		VolunteerSlots: 2,
		CreatedBy:      f.manager.ID,
	}
	if err := f.events.CreateEvent(ctx, event); err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	if err := f.needs.DeleteNeed(ctx, need.ID); err != nil {
		t.Fatalf("Failed to delete need: %v", err)
	}

	entries, _ := f.basket.Basket(ctx, f.helper.ID)
	if len(entries) != 0 {
		t.Errorf("Expected basket line removed with its need, got %d", len(entries))
	}
	if _, err := f.events.Event(ctx, event.ID); !errors.Is(err, types.ErrEventNotFound) {
		t.Errorf("Expected event removed with its need, got %v", err)
	}
	if err := f.needs.DeleteNeed(ctx, need.ID); !errors.Is(err, types.ErrNeedNotFound) {
		t.Errorf("Expected need not found on second delete, got %v", err)
	}
}

func TestSignup_WaitlistAndPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	need := f.need(t, "Sorting shift", "0", 1)

	event := &types.Event{
		NeedID:         need.ID,
		Title:          "Pantry sort",
		StartsAt:       time.Now().Add(24 * time.Hour),
		VolunteerSlots: 1,
		CreatedBy:      f.manager.ID,
	}
	if err := f.events.CreateEvent(ctx, event); err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	first, err := f.events.Signup(ctx, event.ID, f.helper.ID)
	if err != nil {
		t.Fatalf("Failed to sign up: %v", err)
	}
	if first.Status != types.SignupStatusConfirmed {
		t.Errorf("Expected confirmed, got %s", first.Status)
	}

	second, err := f.events.Signup(ctx, event.ID, f.manager.ID)
	if err != nil {
		t.Fatalf("Failed to sign up: %v", err)
	}
	if second.Status != types.SignupStatusWaitlisted {
		t.Errorf("Expected waitlisted, got %s", second.Status)
	}

	cancelled, promoted, err := f.events.Cancel(ctx, event.ID, f.helper.ID)
	if err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}
	if cancelled.Status != types.SignupStatusCancelled {
		t.Errorf("Expected cancelled, got %s", cancelled.Status)
	}
	if promoted == nil || promoted.UserID != f.manager.ID {
		t.Fatalf("Expected manager promoted off the waitlist, got %+v", promoted)
	}
	if promoted.Status != types.SignupStatusConfirmed {
		t.Errorf("Expected promoted signup confirmed, got %s", promoted.Status)
	}
}

func TestCheckout_RejectsDrainedNeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.users.Login(ctx, "second-helper", types.RoleHelper)
	if err != nil {
		t.Fatalf("Failed to login second helper: %v", err)
	}

	coats := f.need(t, "Coats", "40.00", 3)
	soap := f.need(t, "Soap", "1.50", 20)

	if _, err := f.basket.Add(ctx, f.helper.ID, coats.ID, 3); err != nil {
		t.Fatalf("Failed to add coats for first helper: %v", err)
	}
	if _, err := f.basket.Add(ctx, other.ID, soap.ID, 5); err != nil {
		t.Fatalf("Failed to add soap for second helper: %v", err)
	}
	if _, err := f.basket.Add(ctx, other.ID, coats.ID, 2); err != nil {
		t.Fatalf("Failed to add coats for second helper: %v", err)
	}

	if _, err := f.funding.Checkout(ctx, f.helper.ID, nil); err != nil {
		t.Fatalf("Failed first checkout: %v", err)
	}

	_, err = f.funding.Checkout(ctx, other.ID, nil)
	var availErr *types.AvailabilityError
	if !errors.As(err, &availErr) {
		t.Fatalf("Expected availability error, got %v", err)
	}
	if availErr.NeedID != coats.ID || availErr.Available != 0 {
		t.Errorf("Expected coats with nothing available, got %+v", availErr)
	}

	records, err := f.funding.FundingByUser(ctx, other.ID)
	if err != nil {
		t.Fatalf("Failed to list funding: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no funding records for the rejected checkout, got %d", len(records))
	}

	stored, _ := f.needs.Need(ctx, soap.ID)
	if stored.QuantityFulfilled != 0 {
		t.Errorf("Expected soap untouched, got fulfilled %d", stored.QuantityFulfilled)
	}

	entries, _ := f.basket.Basket(ctx, other.ID)
	if len(entries) != 2 {
		t.Errorf("Expected both basket lines kept, got %d", len(entries))
	}
}

func TestCheckout_ConcurrentWithAdd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	need := f.need(t, "Canned soup", "1.00", 1000)

	if _, err := f.basket.Add(ctx, f.helper.ID, need.ID, 1); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}

	const rounds = 20
	errs := make(chan error, rounds*2)

	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.funding.Checkout(ctx, f.helper.ID, nil); err != nil && !errors.Is(err, types.ErrEmptyBasket) {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.basket.Add(ctx, f.helper.ID, need.ID, 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error from concurrent checkout and add: %v", err)
	}

	stored, err := f.needs.Need(ctx, need.ID)
	if err != nil {
		t.Fatalf("Failed to fetch need: %v", err)
	}

	inBasket := 0
	entries, _ := f.basket.Basket(ctx, f.helper.ID)
	for _, e := range entries {
		inBasket += e.Quantity
	}

	if got := stored.QuantityFulfilled + inBasket; got != rounds+1 {
		t.Errorf("Expected every added unit funded or still basketed (%d), got %d", rounds+1, got)
	}
}

func TestUpdateNeed_OnlyWritesGivenColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	need := f.need(t, "Towels", "3.00", 10)

	stale := *need

	need.Priority = types.PriorityUrgent
	if err := f.needs.UpdateNeed(ctx, need.ID, need, []string{"priority"}); err != nil {
		t.Fatalf("Failed to update priority: %v", err)
	}

	stale.Title = "Bath towels"
	if err := f.needs.UpdateNeed(ctx, stale.ID, &stale, []string{"title"}); err != nil {
		t.Fatalf("Failed to update title: %v", err)
	}

	stored, err := f.needs.Need(ctx, need.ID)
	if err != nil {
		t.Fatalf("Failed to fetch need: %v", err)
	}
	if stored.Title != "Bath towels" || stored.Priority != types.PriorityUrgent {
		t.Errorf("Expected both edits kept, got title %q priority %s", stored.Title, stored.Priority)
	}

	if err := f.needs.UpdateNeed(ctx, "missing", &stale, []string{"title"}); !errors.Is(err, types.ErrNeedNotFound) {
		t.Errorf("Expected need not found, got %v", err)
	}
}
