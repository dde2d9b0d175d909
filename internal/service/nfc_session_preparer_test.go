package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelpay/internal/crypto"
	"fuelpay/internal/errors"
	"fuelpay/internal/model"
)

type preparerFixture struct {
	preparer    NfcSessionPreparer
	pinAuth     *pinAuthenticator
	cardVault   CardVault
	orgRepo     *fakeOrgRepo
	nfcRepo     *fakeNfcRepo
	sessionKeys *fakeSessionKeyStore
	ledger      *fakeSpendLedger
	now         *time.Time

	driverID uuid.UUID
	orgID    uuid.UUID
}

func newPreparerFixture(t *testing.T, paymentOption model.PaymentOption) *preparerFixture {
	t.Helper()
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	settingsRepo := newFakeSettingsRepo()
	pinAuth := NewPinAuthenticator(settingsRepo).(*pinAuthenticator)
	pinAuth.now = clock

	ledger := &fakeSpendLedger{daily: decimal.Zero, monthly: decimal.Zero}
	guard := NewSpendLimitGuard(settingsRepo, ledger, nil).(*spendLimitGuard)
	guard.now = clock

	cardVault := NewCardVault(newFakeCardRepo(), NewKeyVault(testMasterKey(t), newFakeKeyRepo()))

	orgRepo := newFakeOrgRepo()
	orgID := uuid.New()
	require.NoError(t, orgRepo.Create(ctx, &model.Organization{
		ID:            orgID,
		Name:          "Acme Logistics",
		PaymentOption: paymentOption,
		Active:        true,
	}))

	nfcRepo := newFakeNfcRepo()
	sessionKeys := newFakeSessionKeyStore()

	preparer := NewNfcSessionPreparer(pinAuth, guard, cardVault, orgRepo, nfcRepo, sessionKeys).(*nfcSessionPreparer)
	preparer.now = clock

	f := &preparerFixture{
		preparer:    preparer,
		pinAuth:     pinAuth,
		cardVault:   cardVault,
		orgRepo:     orgRepo,
		nfcRepo:     nfcRepo,
		sessionKeys: sessionKeys,
		ledger:      ledger,
		now:         &now,
		driverID:    uuid.New(),
		orgID:       orgID,
	}
	return f
}

func (f *preparerFixture) request(amount string) PrepareRequest {
	return PrepareRequest{
		DriverID:       f.driverID,
		OrganizationID: f.orgID,
		Pin:            "2580",
		Amount:         decimal.RequireFromString(amount),
	}
}

func TestPreparePaymentCardMode(t *testing.T) {
	ctx := context.Background()
	f := newPreparerFixture(t, model.PaymentOptionCard)

	// Weak PIN rejected at setup; a keypad-column PIN is accepted.
	assert.ErrorIs(t, f.pinAuth.SetPin(ctx, f.driverID, "1111", ""), errors.ErrWeakPin)
	require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))

	_, err := f.cardVault.RegisterCard(ctx, f.orgID, testCardInput(), uuid.New())
	require.NoError(t, err)

	result, err := f.preparer.PreparePayment(ctx, f.request("100"))
	require.NoError(t, err)

	assert.Equal(t, model.PaymentTypeCard, result.PaymentType)
	assert.Equal(t, "visa ****1111", result.DisplayInfo)
	assert.Len(t, result.EphemeralKey, crypto.KeySize)

	// Transaction row reached nfc_ready with the full timestamp trail.
	tx, err := f.nfcRepo.FindByID(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.NfcStatusNfcReady, tx.Status)
	assert.NotNil(t, tx.PinVerifiedAt)
	assert.NotNil(t, tx.NfcActivatedAt)
	require.NotNil(t, tx.CardID)

	// The payload decrypts under the ephemeral key and carries the amount
	// and the decrypted card fields.
	plaintext, err := crypto.DecryptField(result.EphemeralKey, result.Ciphertext, result.IV)
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(plaintext), &payload))
	assert.Equal(t, "100.00", payload["amount"])
	assert.Equal(t, "card", payload["payment_type"])
	assert.Equal(t, "4111111111111111", payload["card_number"])
	assert.Equal(t, "12/2030", payload["card_expiry"])
	assert.Equal(t, result.TransactionID.String(), payload["transaction_id"])

	// The session key store holds the same key, exactly once.
	storedKey, err := f.sessionKeys.Take(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, result.EphemeralKey, storedKey)
	_, err = f.sessionKeys.Take(ctx, result.TransactionID)
	assert.Error(t, err)
}

func TestPreparePaymentEphemeralKeysAreSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newPreparerFixture(t, model.PaymentOptionCard)
	require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))
	_, err := f.cardVault.RegisterCard(ctx, f.orgID, testCardInput(), uuid.New())
	require.NoError(t, err)

	first, err := f.preparer.PreparePayment(ctx, f.request("10"))
	require.NoError(t, err)
	second, err := f.preparer.PreparePayment(ctx, f.request("10"))
	require.NoError(t, err)

	assert.NotEqual(t, first.EphemeralKey, second.EphemeralKey)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)
}

func TestPreparePaymentFuelAccountMode(t *testing.T) {
	ctx := context.Background()
	f := newPreparerFixture(t, model.PaymentOptionFuelAccount)
	require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))

	vehicle := &model.Vehicle{
		OrganizationID:    f.orgID,
		PlateNumber:       "NH-4821",
		FuelAccountNumber: "FA-00017395",
		Active:            true,
	}
	require.NoError(t, f.orgRepo.CreateVehicle(ctx, vehicle))

	t.Run("requires vehicle id", func(t *testing.T) {
		_, err := f.preparer.PreparePayment(ctx, f.request("50"))
		assert.ErrorIs(t, err, errors.ErrBadRequest)
	})

	t.Run("unknown vehicle", func(t *testing.T) {
		req := f.request("50")
		unknown := uuid.New()
		req.VehicleID = &unknown
		_, err := f.preparer.PreparePayment(ctx, req)
		assert.ErrorIs(t, err, errors.ErrVehicleNotFound)
	})

	t.Run("resolves fuel account without decryption", func(t *testing.T) {
		req := f.request("50")
		req.VehicleID = &vehicle.ID

		result, err := f.preparer.PreparePayment(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentTypeFuelAccount, result.PaymentType)
		assert.Equal(t, "Fuel account, vehicle NH-4821", result.DisplayInfo)

		plaintext, err := crypto.DecryptField(result.EphemeralKey, result.Ciphertext, result.IV)
		require.NoError(t, err)
		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(plaintext), &payload))
		assert.Equal(t, "FA-00017395", payload["fuel_account_number"])
		assert.Empty(t, payload["card_number"])

		tx, err := f.nfcRepo.FindByID(ctx, result.TransactionID)
		require.NoError(t, err)
		require.NotNil(t, tx.VehicleID)
		assert.Nil(t, tx.CardID)
	})
}

func TestPreparePaymentFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing inputs", func(t *testing.T) {
		f := newPreparerFixture(t, model.PaymentOptionCard)
		req := f.request("100")
		req.Pin = ""
		_, err := f.preparer.PreparePayment(ctx, req)
		assert.ErrorIs(t, err, errors.ErrBadRequest)

		req = f.request("100")
		req.Amount = decimal.Zero
		_, err = f.preparer.PreparePayment(ctx, req)
		assert.ErrorIs(t, err, errors.ErrBadRequest)
	})

	t.Run("no pin configured propagates", func(t *testing.T) {
		f := newPreparerFixture(t, model.PaymentOptionCard)
		_, err := f.preparer.PreparePayment(ctx, f.request("100"))
		assert.ErrorIs(t, err, errors.ErrNoPinConfigured)
	})

	t.Run("limit exceeded propagates before any row", func(t *testing.T) {
		f := newPreparerFixture(t, model.PaymentOptionCard)
		require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))
		settings, err := f.pinAuth.settingsRepo.FindByDriverID(ctx, f.driverID)
		require.NoError(t, err)
		settings.DailyLimit = decimal.NewFromInt(50)
		require.NoError(t, f.pinAuth.settingsRepo.Save(ctx, settings))

		_, err = f.preparer.PreparePayment(ctx, f.request("100"))
		var exceeded *errors.LimitExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Empty(t, f.nfcRepo.txs)
	})

	t.Run("no card on file", func(t *testing.T) {
		f := newPreparerFixture(t, model.PaymentOptionCard)
		require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))
		_, err := f.preparer.PreparePayment(ctx, f.request("100"))
		assert.ErrorIs(t, err, errors.ErrNoCardOnFile)
	})

	t.Run("unknown organization", func(t *testing.T) {
		f := newPreparerFixture(t, model.PaymentOptionCard)
		require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))
		req := f.request("100")
		req.OrganizationID = uuid.New()
		_, err := f.preparer.PreparePayment(ctx, req)
		assert.ErrorIs(t, err, errors.ErrOrganizationNotFound)
	})
}

func TestLinkSettlement(t *testing.T) {
	ctx := context.Background()
	f := newPreparerFixture(t, model.PaymentOptionCard)
	require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))
	_, err := f.cardVault.RegisterCard(ctx, f.orgID, testCardInput(), uuid.New())
	require.NoError(t, err)

	result, err := f.preparer.PreparePayment(ctx, f.request("100"))
	require.NoError(t, err)

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := f.preparer.LinkSettlement(ctx, result.TransactionID, decimal.Zero)
		assert.ErrorIs(t, err, errors.ErrBadRequest)
	})

	t.Run("links a ready attempt", func(t *testing.T) {
		tx, err := f.preparer.LinkSettlement(ctx, result.TransactionID, decimal.RequireFromString("87.50"))
		require.NoError(t, err)
		assert.Equal(t, model.NfcStatusLinked, tx.Status)
		require.NotNil(t, tx.FuelTransactionID)

		// The settled amount landed in the ledger with the back-reference.
		require.Len(t, f.nfcRepo.settlements, 1)
		fuelTx := f.nfcRepo.settlements[0]
		assert.Equal(t, *tx.FuelTransactionID, fuelTx.ID)
		assert.True(t, fuelTx.Amount.Equal(decimal.RequireFromString("87.50")))
		assert.Equal(t, f.driverID, fuelTx.DriverID)
		require.NotNil(t, fuelTx.NfcPaymentTransactionID)
		assert.Equal(t, result.TransactionID, *fuelTx.NfcPaymentTransactionID)
	})

	t.Run("cannot link twice", func(t *testing.T) {
		_, err := f.preparer.LinkSettlement(ctx, result.TransactionID, decimal.RequireFromString("87.50"))
		assert.ErrorIs(t, err, errors.ErrBadRequest)
		assert.Len(t, f.nfcRepo.settlements, 1)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := f.preparer.LinkSettlement(ctx, uuid.New(), decimal.RequireFromString("10"))
		assert.Error(t, err)
	})
}

func TestLinkSettlementConcurrentCallbacks(t *testing.T) {
	ctx := context.Background()
	f := newPreparerFixture(t, model.PaymentOptionCard)
	require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))
	_, err := f.cardVault.RegisterCard(ctx, f.orgID, testCardInput(), uuid.New())
	require.NoError(t, err)

	result, err := f.preparer.PreparePayment(ctx, f.request("100"))
	require.NoError(t, err)

	// A retried callback races the original. The row lock makes exactly one
	// settle; the loser sees the attempt already linked.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.preparer.LinkSettlement(ctx, result.TransactionID, decimal.RequireFromString("87.50"))
			errs <- err
		}()
	}

	var succeeded, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			succeeded++
		case stderrors.Is(err, errors.ErrBadRequest):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Len(t, f.nfcRepo.settlements, 1)
}

func TestPreparePaymentFailedRowStaysAuditable(t *testing.T) {
	ctx := context.Background()
	f := newPreparerFixture(t, model.PaymentOptionCard)
	require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))
	_, err := f.cardVault.RegisterCard(ctx, f.orgID, testCardInput(), uuid.New())
	require.NoError(t, err)

	f.sessionKeys.putErr = fmt.Errorf("session key store down")

	_, err = f.preparer.PreparePayment(ctx, f.request("100"))
	require.Error(t, err)

	// The attempt got past PIN verification before the store failed, so a
	// terminal failed row must exist with the reason recorded.
	require.Len(t, f.nfcRepo.txs, 1)
	for _, tx := range f.nfcRepo.txs {
		assert.Equal(t, model.NfcStatusFailed, tx.Status)
		assert.Contains(t, tx.FailureReason, "session key store down")
		assert.NotNil(t, tx.PinVerifiedAt)
		assert.Nil(t, tx.NfcActivatedAt)
	}
}

// The end-to-end lockout scenario: three wrong PINs lock the driver for 30
// minutes, the fourth attempt is refused even with the correct PIN, and the
// window eventually expires.
func TestPreparePaymentLockoutScenario(t *testing.T) {
	ctx := context.Background()
	f := newPreparerFixture(t, model.PaymentOptionCard)
	require.NoError(t, f.pinAuth.SetPin(ctx, f.driverID, "2580", ""))
	_, err := f.cardVault.RegisterCard(ctx, f.orgID, testCardInput(), uuid.New())
	require.NoError(t, err)

	wrong := f.request("100")
	wrong.Pin = "1357"

	for i := 0; i < 3; i++ {
		_, err := f.preparer.PreparePayment(ctx, wrong)
		var incorrect *errors.IncorrectPinError
		require.ErrorAs(t, err, &incorrect, "attempt %d", i+1)
	}

	// Fourth attempt with the correct PIN is still refused.
	_, err = f.preparer.PreparePayment(ctx, f.request("100"))
	var locked *errors.PinLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, f.now.Add(30*time.Minute), locked.Until)

	// No transaction rows exist for the refused attempts.
	assert.Empty(t, f.nfcRepo.txs)

	// After the window the correct PIN works again.
	*f.now = f.now.Add(31 * time.Minute)
	result, err := f.preparer.PreparePayment(ctx, f.request("100"))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentTypeCard, result.PaymentType)
}
