package services

import (
	"context"
	"errors"
	"testing"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/testutil"
	"mototaxi-backend/internal/validation"
)

func TestWithdrawInsufficientBalanceDoesNotMutate(t *testing.T) {
	e := newEnv(t)
	user, _ := testutil.CreateDriver(t, e.db, models.ValidationApproved, models.DriverAvailable, 50)

	_, err := e.drivers.Withdraw(context.Background(), user.ID, WithdrawInput{Amount: 80, PaymentMethod: models.PaymentTransfer})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	var p models.DriverProfile
	e.db.Where("user_id = ?", user.ID).First(&p)
	if p.WalletBalance != 50 {
		t.Errorf("balance must stay 50, got %v", p.WalletBalance)
	}

	var count int64
	e.db.Model(&models.Transaction{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 0 {
		t.Errorf("no transaction must be recorded, got %d", count)
	}
}

func TestWithdrawDebitsAndRecords(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user, _ := testutil.CreateDriver(t, e.db, models.ValidationApproved, models.DriverAvailable, 50)

	record, err := e.drivers.Withdraw(ctx, user.ID, WithdrawInput{Amount: 20.5, PaymentMethod: models.PaymentTransfer})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if record.Type != models.TransactionWithdrawal || record.Amount != 20.5 {
		t.Errorf("unexpected transaction: %+v", record)
	}
	if record.BalanceAfter == nil || *record.BalanceAfter != 29.5 {
		t.Errorf("balance_after must be 29.5, got %v", record.BalanceAfter)
	}

	wallet, err := e.drivers.Wallet(ctx, user.ID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet.Balance != 29.5 || len(wallet.Transactions) != 1 {
		t.Errorf("unexpected wallet: %+v", wallet)
	}

	// весь остаток списывается, ниже нуля нельзя
	if _, err := e.drivers.Withdraw(ctx, user.ID, WithdrawInput{Amount: 29.5, PaymentMethod: models.PaymentCash}); err != nil {
		t.Fatalf("withdraw remaining: %v", err)
	}
	if _, err := e.drivers.Withdraw(ctx, user.ID, WithdrawInput{Amount: 0.01, PaymentMethod: models.PaymentCash}); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance on empty wallet, got %v", err)
	}
}

func TestWithdrawUnknownDriver(t *testing.T) {
	e := newEnv(t)
	client := testutil.CreateUser(t, e.db, models.RoleClient)

	_, err := e.drivers.Withdraw(context.Background(), client.ID, WithdrawInput{Amount: 1, PaymentMethod: models.PaymentCash})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pending, _ := testutil.CreateDriver(t, e.db, models.ValidationPending, models.DriverOffline, 0)
	approved, _ := testutil.CreateDriver(t, e.db, models.ValidationApproved, models.DriverOffline, 0)

	var verr *validation.Error
	if _, err := e.drivers.UpdateStatus(ctx, approved.ID, "sleeping"); !errors.As(err, &verr) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
	if _, err := e.drivers.UpdateStatus(ctx, pending.ID, models.DriverAvailable); !errors.Is(err, ErrDriverNotApproved) {
		t.Errorf("expected ErrDriverNotApproved, got %v", err)
	}

	p, err := e.drivers.UpdateStatus(ctx, approved.ID, models.DriverAvailable)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if p.Status != models.DriverAvailable {
		t.Errorf("expected available, got %s", p.Status)
	}
	if got := e.events.Find(broadcast.ChannelDrivers, broadcast.EventDriverStatus); len(got) != 1 {
		t.Errorf("expected one driver.status event, got %d", len(got))
	}
}

func TestUpdateLocationPublishesToDriverAndTripChannels(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	driver, _ := testutil.CreateDriver(t, e.db, models.ValidationApproved, models.DriverAvailable, 0)
	client := testutil.CreateUser(t, e.db, models.RoleClient)

	if _, err := e.drivers.UpdateLocation(ctx, driver.ID, 4.65, -74.05); err != nil {
		t.Fatalf("update location: %v", err)
	}
	if got := e.events.Find(broadcast.DriverChannel(driver.ID), broadcast.EventDriverLocation); len(got) != 1 {
		t.Fatalf("expected location on driver channel, got %d", len(got))
	}

	trip, err := e.trips.Request(ctx, client.ID, tripInput())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := e.trips.Accept(ctx, driver.ID, trip.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	p, err := e.drivers.UpdateLocation(ctx, driver.ID, 4.66, -74.06)
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if p.Latitude == nil || *p.Latitude != 4.66 {
		t.Errorf("latitude not stored: %v", p.Latitude)
	}
	if got := e.events.Find(broadcast.TripChannel(trip.ID), broadcast.EventDriverLocation); len(got) != 1 {
		t.Errorf("expected location on trip channel, got %d", len(got))
	}
	if got := e.events.Find(broadcast.ChannelDrivers, broadcast.EventDriverLocation); len(got) != 0 {
		t.Error("coordinates must not go to the public drivers channel")
	}

	if _, err := e.drivers.UpdateLocation(ctx, driver.ID, 91, 0); err == nil {
		t.Error("latitude out of range must fail")
	}
}

func TestGoingOfflineWithActiveTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	driver, _ := testutil.CreateDriver(t, e.db, models.ValidationApproved, models.DriverAvailable, 0)
	client := testutil.CreateUser(t, e.db, models.RoleClient)

	trip, _ := e.trips.Request(ctx, client.ID, tripInput())
	if _, err := e.trips.Accept(ctx, driver.ID, trip.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.drivers.UpdateStatus(ctx, driver.ID, models.DriverOffline); !errors.Is(err, ErrActiveTripExists) {
		t.Errorf("expected ErrActiveTripExists, got %v", err)
	}
}

func TestRatingsSummary(t *testing.T) {
	e := newEnv(t)
	driver, _ := testutil.CreateDriver(t, e.db, models.ValidationApproved, models.DriverAvailable, 0)
	client := testutil.CreateUser(t, e.db, models.RoleClient)

	for i, score := range []int{5, 4, 4} {
		e.db.Create(&models.Rating{TripID: uint(i + 1), DriverID: driver.ID, ClientID: client.ID, Score: score})
	}

	summary, err := e.drivers.Ratings(context.Background(), driver.ID)
	if err != nil {
		t.Fatalf("ratings: %v", err)
	}
	if summary.Count != 3 || summary.Average != 4.33 {
		t.Errorf("unexpected summary: count=%d avg=%v", summary.Count, summary.Average)
	}
}
