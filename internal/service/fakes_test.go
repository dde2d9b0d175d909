package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fuelpay/internal/model"
	"fuelpay/internal/repository"
)

// In-memory repository fakes. The PIN and card flows are stateful sequences,
// so these behave like the real store (copies out, writes back) instead of
// scripted mocks.

type fakeKeyRepo struct {
	mu   sync.Mutex
	keys []model.EncryptionKey
}

func newFakeKeyRepo() *fakeKeyRepo { return &fakeKeyRepo{} }

func (r *fakeKeyRepo) Create(ctx context.Context, key *model.EncryptionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	key.CreatedAt = time.Now()
	r.keys = append(r.keys, *key)
	return nil
}

func (r *fakeKeyRepo) FindActive(ctx context.Context) (*model.EncryptionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.keys {
		if r.keys[i].Active {
			key := r.keys[i]
			return &key, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeKeyRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.EncryptionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.keys {
		if r.keys[i].ID == id {
			key := r.keys[i]
			return &key, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeKeyRepo) MaxVersion(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for i := range r.keys {
		if r.keys[i].Version > max {
			max = r.keys[i].Version
		}
	}
	return max, nil
}

func (r *fakeKeyRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.EncryptionKeyRepository) error) error {
	return fn(ctx, r)
}

// corrupt flips the stored ciphertext of every key.
func (r *fakeKeyRepo) corrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.keys {
		r.keys[i].Ciphertext = "Y29ycnVwdGVkY29ycnVwdGVkY29ycnVwdGVk"
	}
}

type fakeCardRepo struct {
	mu    sync.Mutex
	cards []model.PaymentCard
}

func newFakeCardRepo() *fakeCardRepo { return &fakeCardRepo{} }

func (r *fakeCardRepo) Create(ctx context.Context, card *model.PaymentCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	card.CreatedAt = time.Now()
	r.cards = append(r.cards, *card)
	return nil
}

func (r *fakeCardRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PaymentCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.cards {
		if r.cards[i].ID == id {
			card := r.cards[i]
			return &card, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCardRepo) FindDefaultActive(ctx context.Context, orgID uuid.UUID) (*model.PaymentCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.cards {
		if r.cards[i].OrganizationID == orgID && r.cards[i].IsDefault && r.cards[i].Active {
			card := r.cards[i]
			return &card, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCardRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.PaymentCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PaymentCard
	for i := range r.cards {
		if r.cards[i].OrganizationID == orgID {
			out = append(out, r.cards[i])
		}
	}
	return out, nil
}

func (r *fakeCardRepo) ClearDefault(ctx context.Context, orgID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.cards {
		if r.cards[i].OrganizationID == orgID {
			r.cards[i].IsDefault = false
		}
	}
	return nil
}

func (r *fakeCardRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.cards {
		if r.cards[i].ID == id {
			r.cards[i].Active = false
			r.cards[i].IsDefault = false
		}
	}
	return nil
}

func (r *fakeCardRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.CardRepository) error) error {
	return fn(ctx, r)
}

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[uuid.UUID]model.DriverPaymentSettings
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: make(map[uuid.UUID]model.DriverPaymentSettings)}
}

func (r *fakeSettingsRepo) FindByDriverID(ctx context.Context, driverID uuid.UUID) (*model.DriverPaymentSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings, ok := r.settings[driverID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &settings, nil
}

func (r *fakeSettingsRepo) FindByDriverIDForUpdate(ctx context.Context, driverID uuid.UUID) (*model.DriverPaymentSettings, error) {
	return r.FindByDriverID(ctx, driverID)
}

func (r *fakeSettingsRepo) Save(ctx context.Context, settings *model.DriverPaymentSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[settings.DriverID] = *settings
	return nil
}

func (r *fakeSettingsRepo) Upsert(ctx context.Context, settings *model.DriverPaymentSettings) error {
	return r.Save(ctx, settings)
}

func (r *fakeSettingsRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.DriverSettingsRepository) error) error {
	return fn(ctx, r)
}

type fakeNfcRepo struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	txs         map[uuid.UUID]model.NfcPaymentTransaction
	settlements []model.FuelTransaction
}

func newFakeNfcRepo() *fakeNfcRepo {
	return &fakeNfcRepo{txs: make(map[uuid.UUID]model.NfcPaymentTransaction)}
}

func (r *fakeNfcRepo) Create(ctx context.Context, tx *model.NfcPaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.CreatedAt = time.Now()
	r.txs[tx.ID] = *tx
	return nil
}

func (r *fakeNfcRepo) Save(ctx context.Context, tx *model.NfcPaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs[tx.ID] = *tx
	return nil
}

func (r *fakeNfcRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.NfcPaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &tx, nil
}

func (r *fakeNfcRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.NfcPaymentTransaction, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeNfcRepo) RecordSettlement(ctx context.Context, settlement *model.FuelTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if settlement.ID == uuid.Nil {
		settlement.ID = uuid.New()
	}
	settlement.CreatedAt = time.Now()
	r.settlements = append(r.settlements, *settlement)
	return nil
}

// WithTransaction serializes callers the way competing row locks would.
func (r *fakeNfcRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.NfcTransactionRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(ctx, r)
}

func (r *fakeNfcRepo) ListByDriver(ctx context.Context, driverID uuid.UUID, limit int) ([]model.NfcPaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.NfcPaymentTransaction
	for _, tx := range r.txs {
		if tx.DriverID == driverID {
			out = append(out, tx)
		}
	}
	return out, nil
}

type fakeOrgRepo struct {
	orgs     map[uuid.UUID]model.Organization
	vehicles map[uuid.UUID]model.Vehicle
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{
		orgs:     make(map[uuid.UUID]model.Organization),
		vehicles: make(map[uuid.UUID]model.Vehicle),
	}
}

func (r *fakeOrgRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	org, ok := r.orgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &org, nil
}

func (r *fakeOrgRepo) FindVehicle(ctx context.Context, orgID, vehicleID uuid.UUID) (*model.Vehicle, error) {
	vehicle, ok := r.vehicles[vehicleID]
	if !ok || vehicle.OrganizationID != orgID {
		return nil, gorm.ErrRecordNotFound
	}
	return &vehicle, nil
}

func (r *fakeOrgRepo) Create(ctx context.Context, org *model.Organization) error {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	r.orgs[org.ID] = *org
	return nil
}

func (r *fakeOrgRepo) CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	if vehicle.ID == uuid.Nil {
		vehicle.ID = uuid.New()
	}
	r.vehicles[vehicle.ID] = *vehicle
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]model.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type storedToken struct {
	userID string
	email  string
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]storedToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]storedToken)}
}

func (s *fakeTokenStore) StoreRefreshToken(ctx context.Context, tokenID, userID, email string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenID] = storedToken{userID: userID, email: email}
	return nil
}

func (s *fakeTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[tokenID]
	if !ok {
		return "", "", gorm.ErrRecordNotFound
	}
	return tok.userID, tok.email, nil
}

func (s *fakeTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tokenID)
	return nil
}

func (s *fakeTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	return nil
}

func (s *fakeTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	return false, nil
}

type fakeSpendLedger struct {
	daily   decimal.Decimal
	monthly decimal.Decimal
}

func (l *fakeSpendLedger) DailySpent(ctx context.Context, driverID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	return l.daily, nil
}

func (l *fakeSpendLedger) MonthlySpent(ctx context.Context, driverID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	return l.monthly, nil
}

type fakeSessionKeyStore struct {
	mu     sync.Mutex
	keys   map[uuid.UUID][]byte
	putErr error
}

func newFakeSessionKeyStore() *fakeSessionKeyStore {
	return &fakeSessionKeyStore{keys: make(map[uuid.UUID][]byte)}
}

func (s *fakeSessionKeyStore) Put(ctx context.Context, transactionID uuid.UUID, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.keys[transactionID] = key
	return nil
}

func (s *fakeSessionKeyStore) Take(ctx context.Context, transactionID uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[transactionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	delete(s.keys, transactionID)
	return key, nil
}
