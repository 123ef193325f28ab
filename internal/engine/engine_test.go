package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valetpark/valetpark/internal/auth"
	"github.com/valetpark/valetpark/internal/capacity"
	"github.com/valetpark/valetpark/internal/model"
	"github.com/valetpark/valetpark/internal/repository"
	"github.com/valetpark/valetpark/internal/store"
)

var (
	adminActor    = auth.Actor{UserID: "u-admin", Username: "alice", Role: model.RoleAdmin}
	managerActor  = auth.Actor{UserID: "u-mgr", Username: "bob", Role: model.RoleManager}
	operatorActor = auth.Actor{UserID: "u-op", Username: "carol", Role: model.RoleOperator}
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) ReservationConfirmed(_ context.Context, res model.Reservation, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, res.ID)
	return nil
}

func newTestEngine(t *testing.T, limits capacity.Limits) (*Engine, *repository.ReservationRepo, *recordingNotifier) {
	t.Helper()
	repo := repository.NewReservationRepo(store.NewMemoryStore())
	notifier := &recordingNotifier{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return New(repo, auth.DefaultPermissions(), limits, notifier, log), repo, notifier
}

func submitStay(t *testing.T, e *Engine, fromDay, toDay, vehicles int, keys bool) model.Reservation {
	t.Helper()
	plates := make([]string, vehicles)
	for i := range plates {
		plates[i] = "B-AB 123" + string(rune('0'+i))
	}
	res, err := e.Submit(context.Background(), SubmitRequest{
		Arrival:           time.Date(2026, time.July, fromDay, 9, 0, 0, 0, time.UTC),
		Departure:         time.Date(2026, time.July, toDay, 17, 0, 0, 0, time.UTC),
		VehicleCount:      vehicles,
		LicensePlates:     plates,
		PassengerCount:    vehicles * 2,
		CarKeysHandedOver: keys,
		PriceCents:        12900,
	})
	require.NoError(t, err)
	return res
}

func TestSubmit(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	res := submitStay(t, e, 1, 3, 2, false)

	assert.NotEmpty(t, res.ID)
	assert.NotEmpty(t, res.BookingCode)
	assert.NotEqual(t, res.ID, res.BookingCode)
	assert.Equal(t, model.StatusNew, res.Status)
	assert.Equal(t, model.PaymentUnpaid, res.PaymentStatus)
	require.Len(t, res.Audit, 1)
	assert.Equal(t, model.ActionSubmit, res.Audit[0].Action)
	assert.Equal(t, model.SystemOperator, res.Audit[0].Operator)
	assert.Nil(t, res.Invoice)
}

func TestSubmitValidation(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	base := SubmitRequest{
		Arrival:       time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC),
		Departure:     time.Date(2026, time.July, 2, 9, 0, 0, 0, time.UTC),
		VehicleCount:  1,
		LicensePlates: []string{"HH-XY 42"},
	}

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
		field  string
	}{
		{"departure before arrival", func(r *SubmitRequest) { r.Departure = r.Arrival.Add(-time.Hour) }, "departure"},
		{"zero vehicles", func(r *SubmitRequest) { r.VehicleCount = 0 }, "vehicle_count"},
		{"too many vehicles", func(r *SubmitRequest) { r.VehicleCount = 6 }, "vehicle_count"},
		{"plate count mismatch", func(r *SubmitRequest) { r.VehicleCount = 2 }, "license_plates"},
		{"blank plate", func(r *SubmitRequest) { r.LicensePlates = []string{"  "} }, "license_plates"},
		{"negative passengers", func(r *SubmitRequest) { r.PassengerCount = -1 }, "passenger_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := e.Submit(context.Background(), req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAcceptFits(t *testing.T) {
	e, repo, notifier := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	// Five no-keys vehicles already admitted on the same day.
	first := submitStay(t, e, 1, 1, 5, false)
	_, err := e.Accept(ctx, adminActor, first.ID, false)
	require.NoError(t, err)

	// One more with keys handed over: total 6 of 7, fits.
	second := submitStay(t, e, 1, 1, 1, true)
	got, err := e.Accept(ctx, managerActor, second.ID, false)
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.False(t, got.CapacityOverride)
	require.Len(t, got.Audit, 2)
	assert.Equal(t, model.ActionAccept, got.Audit[1].Action)
	assert.Equal(t, "bob", got.Audit[1].Operator)

	stored, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
	assert.Contains(t, notifier.calls, second.ID)
}

func TestAcceptConflictWithoutOverride(t *testing.T) {
	e, repo, notifier := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	first := submitStay(t, e, 1, 2, 5, false)
	_, err := e.Accept(ctx, adminActor, first.ID, false)
	require.NoError(t, err)

	// A sixth no-keys vehicle cannot use the overflow pool.
	second := submitStay(t, e, 2, 3, 1, false)
	_, err = e.Accept(ctx, adminActor, second.ID, false)

	var conflict *CapacityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, second.ID, conflict.ReservationID)
	require.Len(t, conflict.Evaluation.Days, 2)
	assert.True(t, conflict.Evaluation.Days[0].IsOverNonKeysLimit)
	assert.False(t, conflict.Evaluation.Days[0].WouldFit)
	// Only July 2 collides with the existing stay.
	require.Len(t, conflict.OverLimitDays(), 1)
	assert.Equal(t, time.Date(2026, time.July, 2, 0, 0, 0, 0, time.UTC), conflict.OverLimitDays()[0])

	// No mutation: still new, audit unchanged, nothing dispatched.
	stored, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, stored.Status)
	assert.Len(t, stored.Audit, 1)
	assert.NotContains(t, notifier.calls, second.ID)
}

func TestAcceptWithOverride(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	first := submitStay(t, e, 1, 1, 5, false)
	_, err := e.Accept(ctx, adminActor, first.ID, false)
	require.NoError(t, err)

	second := submitStay(t, e, 1, 1, 1, false)
	got, err := e.Accept(ctx, managerActor, second.ID, true)
	require.NoError(t, err)

	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.True(t, got.CapacityOverride)
	require.Len(t, got.Audit, 2)
	assert.Equal(t, model.ActionAcceptWithOverride, got.Audit[1].Action)
	assert.Contains(t, got.Audit[1].Reason, "2026-07-01")
}

func TestAcceptOverrideRequiresForceAccept(t *testing.T) {
	e, repo, _ := newTestEngine(t, capacity.Limits{Regular: 1, Overflow: 0})
	ctx := context.Background()

	first := submitStay(t, e, 1, 1, 1, false)
	_, err := e.Accept(ctx, adminActor, first.ID, false)
	require.NoError(t, err)

	second := submitStay(t, e, 1, 1, 1, false)
	_, err = e.Accept(ctx, operatorActor, second.ID, true)

	var authz *auth.AuthorizationError
	require.ErrorAs(t, err, &authz)
	assert.Equal(t, auth.PermForceAccept, authz.RequiredPermission)

	stored, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, stored.Status)
	assert.Len(t, stored.Audit, 1)
}

func TestAcceptWrongSourceState(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	res := submitStay(t, e, 1, 1, 1, false)
	_, err := e.Accept(ctx, adminActor, res.ID, false)
	require.NoError(t, err)

	_, err = e.Accept(ctx, adminActor, res.ID, false)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.StatusConfirmed, invalid.Current)
	assert.Equal(t, model.StatusConfirmed, invalid.Requested)
}

func TestAcceptUnknownID(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	_, err := e.Accept(context.Background(), adminActor, "no-such-id", false)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestConcurrentAcceptAdmitsAtMostOne(t *testing.T) {
	// Two 3-vehicle stays fit individually (3 of 5) but not jointly (6 of 5).
	e, repo, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 0})
	ctx := context.Background()

	a := submitStay(t, e, 1, 2, 3, false)
	b := submitStay(t, e, 1, 2, 3, false)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.Accept(ctx, adminActor, id, false)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	var confirmed, conflicts int
	for err := range errs {
		if err == nil {
			confirmed++
			continue
		}
		var conflict *CapacityConflictError
		require.ErrorAs(t, err, &conflict)
		conflicts++
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 1, conflicts)

	holding, err := repo.ListHolding(ctx)
	require.NoError(t, err)
	assert.Len(t, holding, 1)
}

func TestCancel(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	t.Run("empty reason rejected", func(t *testing.T) {
		res := submitStay(t, e, 1, 2, 1, false)
		_, err := e.Cancel(ctx, adminActor, res.ID, "   ")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		stored, err := e.Get(ctx, adminActor, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusNew, stored.Status)
	})

	t.Run("cancel new", func(t *testing.T) {
		res := submitStay(t, e, 1, 2, 1, false)
		got, err := e.Cancel(ctx, adminActor, res.ID, "customer called")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status)
		assert.Equal(t, "customer called", got.Audit[1].Reason)
	})

	t.Run("cancel confirmed releases capacity", func(t *testing.T) {
		e2, repo2, _ := newTestEngine(t, capacity.Limits{Regular: 1, Overflow: 0})
		first := submitStay(t, e2, 1, 2, 1, false)
		_, err := e2.Accept(ctx, adminActor, first.ID, false)
		require.NoError(t, err)
		_, err = e2.Cancel(ctx, adminActor, first.ID, "plans changed")
		require.NoError(t, err)

		holding, err := repo2.ListHolding(ctx)
		require.NoError(t, err)
		assert.Empty(t, holding)

		// The freed spot is usable again.
		second := submitStay(t, e2, 1, 2, 1, false)
		_, err = e2.Accept(ctx, adminActor, second.ID, false)
		require.NoError(t, err)
	})

	t.Run("cancel arrived rejected", func(t *testing.T) {
		res := submitStay(t, e, 10, 11, 1, false)
		_, err := e.Accept(ctx, adminActor, res.ID, false)
		require.NoError(t, err)
		_, err = e.MarkArrived(ctx, adminActor, res.ID)
		require.NoError(t, err)

		_, err = e.Cancel(ctx, adminActor, res.ID, "too late")
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
	})
}

func TestArrivalAndCheckout(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	res := submitStay(t, e, 1, 2, 1, false)
	_, err := e.Accept(ctx, adminActor, res.ID, false)
	require.NoError(t, err)

	arrived, err := e.MarkArrived(ctx, operatorActor, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, arrived.Status)
	require.NotNil(t, arrived.ArrivedAt)
	firstArrival := *arrived.ArrivedAt

	out, err := e.Checkout(ctx, operatorActor, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedOut, out.Status)
	require.NotNil(t, out.CheckedOutAt)
	assert.Equal(t, firstArrival, *out.ArrivedAt, "arrival timestamp set exactly once")

	// checked-out is terminal
	_, err = e.Checkout(ctx, operatorActor, res.ID)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestNoShowRequiresReasonAndReleasesCapacity(t *testing.T) {
	e, repo, _ := newTestEngine(t, capacity.Limits{Regular: 1, Overflow: 0})
	ctx := context.Background()

	res := submitStay(t, e, 1, 2, 1, false)
	_, err := e.Accept(ctx, adminActor, res.ID, false)
	require.NoError(t, err)

	_, err = e.MarkNoShow(ctx, adminActor, res.ID, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := e.MarkNoShow(ctx, adminActor, res.ID, "never showed up")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, got.Status)

	holding, err := repo.ListHolding(ctx)
	require.NoError(t, err)
	assert.Empty(t, holding)
}

func TestAuditReplayMatchesStatus(t *testing.T) {
	e, repo, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	full := submitStay(t, e, 1, 2, 1, false)
	_, err := e.Accept(ctx, adminActor, full.ID, false)
	require.NoError(t, err)
	_, err = e.MarkArrived(ctx, adminActor, full.ID)
	require.NoError(t, err)
	_, err = e.Checkout(ctx, adminActor, full.ID)
	require.NoError(t, err)

	cancelled := submitStay(t, e, 3, 4, 1, false)
	_, err = e.Cancel(ctx, adminActor, cancelled.ID, "duplicate booking")
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, res := range all {
		replayed, ok := res.ReplayStatus()
		require.True(t, ok, "audit chain of %s must be consistent", res.ID)
		assert.Equal(t, res.Status, replayed)
		assert.Equal(t, res.Status, res.Audit[len(res.Audit)-1].To)
	}
}

func TestTransitionsRequireEditPermission(t *testing.T) {
	// A role outside the table holds no permissions at all.
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()
	nobody := auth.Actor{UserID: "u-x", Username: "mallory", Role: model.Role("guest")}

	res := submitStay(t, e, 1, 2, 1, false)
	_, err := e.Accept(ctx, nobody, res.ID, false)
	var authz *auth.AuthorizationError
	require.ErrorAs(t, err, &authz)
	assert.Equal(t, auth.PermEditReservations, authz.RequiredPermission)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	e, repo, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	res := submitStay(t, e, 1, 2, 1, false)

	err := e.Delete(ctx, managerActor, res.ID)
	var authz *auth.AuthorizationError
	require.ErrorAs(t, err, &authz)
	assert.Equal(t, auth.PermDeleteReservations, authz.RequiredPermission)

	require.NoError(t, e.Delete(ctx, adminActor, res.ID))
	_, err = repo.GetByID(ctx, res.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateDetails(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 5, Overflow: 2})
	ctx := context.Background()

	res := submitStay(t, e, 1, 2, 2, false)
	paid := model.PaymentPaid
	keys := true
	got, err := e.UpdateDetails(ctx, operatorActor, res.ID, EditRequest{
		LicensePlates:     []string{"M-AA 1", "M-AA 2"},
		PaymentStatus:     &paid,
		CarKeysHandedOver: &keys,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"M-AA 1", "M-AA 2"}, got.LicensePlates)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
	assert.True(t, got.CarKeysHandedOver)
	assert.Equal(t, model.StatusNew, got.Status, "edit never touches status")
	assert.Len(t, got.Audit, 1, "edit never appends audit entries")

	t.Run("plate count must match vehicles", func(t *testing.T) {
		_, err := e.UpdateDetails(ctx, operatorActor, res.ID, EditRequest{
			LicensePlates: []string{"M-AA 1"},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestPreviewCapacity(t *testing.T) {
	e, _, _ := newTestEngine(t, capacity.Limits{Regular: 2, Overflow: 0})
	ctx := context.Background()

	res := submitStay(t, e, 1, 2, 2, false)
	_, err := e.Accept(ctx, adminActor, res.ID, false)
	require.NoError(t, err)

	eval, err := e.PreviewCapacity(ctx, operatorActor, capacity.Request{
		Arrival:      time.Date(2026, time.July, 2, 9, 0, 0, 0, time.UTC),
		Departure:    time.Date(2026, time.July, 2, 17, 0, 0, 0, time.UTC),
		VehicleCount: 1,
	})
	require.NoError(t, err)
	assert.False(t, eval.Admissible)

	// Preview is read-only: the reservation set is unchanged.
	second, err := e.PreviewCapacity(ctx, operatorActor, capacity.Request{
		Arrival:      time.Date(2026, time.July, 2, 9, 0, 0, 0, time.UTC),
		Departure:    time.Date(2026, time.July, 2, 17, 0, 0, 0, time.UTC),
		VehicleCount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, eval, second)
}
