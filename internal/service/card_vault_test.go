package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelpay/internal/errors"
	"fuelpay/internal/model"
)

func testCardInput() CardInput {
	return CardInput{
		Number:      "4111 1111 1111 1111",
		HolderName:  "Sam Okafor",
		ExpiryMonth: "12",
		ExpiryYear:  "2030",
		CVV:         "123",
		Nickname:    "fleet card",
	}
}

func newTestCardVault(t *testing.T) (CardVault, *fakeCardRepo) {
	t.Helper()
	cardRepo := newFakeCardRepo()
	keyVault := NewKeyVault(testMasterKey(t), newFakeKeyRepo())
	return NewCardVault(cardRepo, keyVault), cardRepo
}

func TestRegisterCard(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	creator := uuid.New()

	t.Run("rejects invalid card number", func(t *testing.T) {
		vault, repo := newTestCardVault(t)
		input := testCardInput()
		input.Number = "4111111111111112"

		_, err := vault.RegisterCard(ctx, orgID, input, creator)
		assert.ErrorIs(t, err, errors.ErrInvalidCardNumber)
		assert.Empty(t, repo.cards)
	})

	t.Run("fails before any write when master key missing", func(t *testing.T) {
		cardRepo := newFakeCardRepo()
		keyRepo := newFakeKeyRepo()
		vault := NewCardVault(cardRepo, NewKeyVault(nil, keyRepo))

		_, err := vault.RegisterCard(ctx, orgID, testCardInput(), creator)
		assert.ErrorIs(t, err, errors.ErrKeyUnavailable)
		assert.Empty(t, cardRepo.cards)
		assert.Empty(t, keyRepo.keys)
	})

	t.Run("summary carries no sensitive data", func(t *testing.T) {
		vault, _ := newTestCardVault(t)

		summary, err := vault.RegisterCard(ctx, orgID, testCardInput(), creator)
		require.NoError(t, err)

		assert.Equal(t, model.CardBrandVisa, summary.Brand)
		assert.Equal(t, "1111", summary.LastFour)
		assert.Equal(t, "fleet card", summary.Nickname)
		assert.True(t, summary.IsDefault)

		serialized, err := json.Marshal(summary)
		require.NoError(t, err)
		assert.NotContains(t, string(serialized), "4111111111111111")
		assert.NotContains(t, string(serialized), "Sam Okafor")
	})

	t.Run("stored row is encrypted with independent IVs", func(t *testing.T) {
		vault, repo := newTestCardVault(t)

		_, err := vault.RegisterCard(ctx, orgID, testCardInput(), creator)
		require.NoError(t, err)

		card := repo.cards[0]
		assert.NotContains(t, card.NumberCiphertext, "4111111111111111")
		assert.NotEmpty(t, card.CVVCiphertext)

		ivs := map[string]struct{}{
			card.NumberIV:      {},
			card.HolderNameIV:  {},
			card.ExpiryMonthIV: {},
			card.ExpiryYearIV:  {},
			card.CVVIV:         {},
		}
		assert.Len(t, ivs, 5, "each field must get its own IV")
	})

	t.Run("default exclusivity across registrations", func(t *testing.T) {
		vault, repo := newTestCardVault(t)

		for i := 0; i < 4; i++ {
			_, err := vault.RegisterCard(ctx, orgID, testCardInput(), creator)
			require.NoError(t, err)
		}

		defaults := 0
		for _, card := range repo.cards {
			if card.IsDefault && card.Active {
				defaults++
			}
		}
		assert.Equal(t, 1, defaults)
	})
}

func TestGetDefaultActiveCard(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()

	t.Run("none on file is nil not error", func(t *testing.T) {
		vault, _ := newTestCardVault(t)
		card, err := vault.GetDefaultActiveCard(ctx, orgID)
		assert.NoError(t, err)
		assert.Nil(t, card)
	})

	t.Run("round trip through decrypt", func(t *testing.T) {
		vault, _ := newTestCardVault(t)
		_, err := vault.RegisterCard(ctx, orgID, testCardInput(), uuid.New())
		require.NoError(t, err)

		card, err := vault.GetDefaultActiveCard(ctx, orgID)
		require.NoError(t, err)
		require.NotNil(t, card)

		decrypted, err := vault.Decrypt(ctx, card)
		require.NoError(t, err)
		assert.Equal(t, "4111111111111111", decrypted.Number)
		assert.Equal(t, "Sam Okafor", decrypted.HolderName)
		assert.Equal(t, "12", decrypted.ExpiryMonth)
		assert.Equal(t, "2030", decrypted.ExpiryYear)
		assert.Equal(t, "123", decrypted.CVV)
	})
}

func TestDeactivateCard(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	vault, _ := newTestCardVault(t)

	summary, err := vault.RegisterCard(ctx, orgID, testCardInput(), uuid.New())
	require.NoError(t, err)

	t.Run("wrong organization is forbidden", func(t *testing.T) {
		assert.ErrorIs(t, vault.DeactivateCard(ctx, uuid.New(), summary.ID), errors.ErrForbidden)
	})

	t.Run("deactivation removes the card from file", func(t *testing.T) {
		require.NoError(t, vault.DeactivateCard(ctx, orgID, summary.ID))

		card, err := vault.GetDefaultActiveCard(ctx, orgID)
		assert.NoError(t, err)
		assert.Nil(t, card)
	})
}
