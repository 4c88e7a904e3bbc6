package services

import (
	"context"
	"errors"
	"testing"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/testutil"
)

func TestValidateDriver(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	driver, _ := testutil.CreateDriver(t, e.db, models.ValidationPending, models.DriverOffline, 0)

	pending, err := e.admin.ListDrivers(ctx, models.ValidationPending)
	if err != nil || len(pending) != 1 || pending[0].User == nil {
		t.Fatalf("expected one pending driver with user, got %d (%v)", len(pending), err)
	}

	p, err := e.admin.ValidateDriver(ctx, driver.ID, ValidateDriverInput{Status: models.ValidationApproved})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !p.IsApproved() {
		t.Errorf("driver must be approved, got %s", p.ValidationStatus)
	}

	p, err = e.admin.ValidateDriver(ctx, driver.ID, ValidateDriverInput{Status: models.ValidationRejected, Reason: "licencia vencida"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if p.ValidationStatus != models.ValidationRejected || p.RejectionReason != "licencia vencida" || p.Status != models.DriverOffline {
		t.Errorf("unexpected rejected profile: %+v", p)
	}

	revoked := e.events.Find(broadcast.ChannelAvailableTrips, broadcast.EventAccessRevoked)
	if len(revoked) != 1 {
		t.Fatalf("rejection must revoke the available trips feed, got %d events", len(revoked))
	}
	if id, ok := broadcast.RevokedUser(revoked[0]); !ok || id != driver.ID {
		t.Errorf("revoked user = %d, want %d", id, driver.ID)
	}

	if _, err := e.admin.ValidateDriver(ctx, 4242, ValidateDriverInput{Status: models.ValidationApproved}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, e.db, models.RoleAdmin)
	client := testutil.CreateUser(t, e.db, models.RoleClient)

	if err := e.admin.DeleteUser(ctx, admin.ID, admin.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin must not delete themselves, got %v", err)
	}
	if err := e.admin.DeleteUser(ctx, admin.ID, client.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	users, err := e.admin.ListUsers(ctx, models.RoleClient)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("deleted client must not be listed, got %d", len(users))
	}
	if err := e.admin.DeleteUser(ctx, admin.ID, client.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete must return ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	client := testutil.CreateUser(t, e.db, models.RoleClient)
	driver, _ := testutil.CreateDriver(t, e.db, models.ValidationApproved, models.DriverAvailable, 100)
	pkg := testutil.CreatePackage(t, e.db, 4, 30, models.PackageActive)

	trip, _ := e.trips.Request(ctx, client.ID, tripInput())
	e.trips.Accept(ctx, driver.ID, trip.ID)
	e.trips.UpdateStatus(ctx, driver.ID, trip.ID, UpdateTripStatusInput{Status: models.TripInProgress})
	e.trips.UpdateStatus(ctx, driver.ID, trip.ID, UpdateTripStatusInput{Status: models.TripCompleted})

	if _, err := e.drivers.Withdraw(ctx, driver.ID, WithdrawInput{Amount: 30, PaymentMethod: models.PaymentTransfer}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := e.packages.Purchase(ctx, client.ID, pkg.ID, PurchaseInput{PaymentMethod: models.PaymentCard}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	stats, err := e.admin.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TripsByStatus[models.TripCompleted] != 1 {
		t.Errorf("expected one completed trip, got %v", stats.TripsByStatus)
	}
	if stats.UsersByRole[models.RoleClient] != 1 || stats.UsersByRole[models.RoleMotorista] != 1 {
		t.Errorf("unexpected users by role: %v", stats.UsersByRole)
	}
	if stats.DriversByStatus[models.DriverAvailable] != 1 || stats.DriversByValidation[models.ValidationApproved] != 1 {
		t.Errorf("unexpected driver counts: %v %v", stats.DriversByStatus, stats.DriversByValidation)
	}
	if stats.TotalEarnings != driverEarning(trip.Fare, testFare.Commission) {
		t.Errorf("total earnings = %v", stats.TotalEarnings)
	}
	if stats.TotalWithdrawals != 30 || stats.TotalPurchases != pkg.Price {
		t.Errorf("unexpected totals: withdrawals=%v purchases=%v", stats.TotalWithdrawals, stats.TotalPurchases)
	}

	txs, err := e.admin.ListTransactions(ctx, models.TransactionWithdrawal, 0)
	if err != nil || len(txs) != 1 {
		t.Errorf("expected one withdrawal, got %d (%v)", len(txs), err)
	}
	trips, err := e.admin.ListTrips(ctx, models.TripCompleted)
	if err != nil || len(trips) != 1 {
		t.Errorf("expected one completed trip, got %d (%v)", len(trips), err)
	}
}
