package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinicore/authorization/internal/domain/entity"
	repo "github.com/clinicore/authorization/internal/domain/repository"
	"github.com/clinicore/authorization/internal/infrastructure/rabbitmq"
	"github.com/clinicore/authorization/pkg/apperrors"
	"github.com/clinicore/authorization/pkg/helpers"
	"github.com/clinicore/authorization/pkg/mailer"
	"github.com/clinicore/authorization/pkg/verification"
)

const createdBySelfRegistration = "self-registration"

// FactPublisher is the outbound side of the event relay.
type FactPublisher interface {
	Publish(ctx context.Context, queue string, kind rabbitmq.FactKind, payload any) error
}

// AccountService drives the register / sign-in / refresh / confirm-email
// state machine. Synchronous collaborators (hasher, token issuer, codec,
// store) run inline; facts are handed to the publisher best-effort.
type AccountService struct {
	Accounts      repo.AccountRepository
	Doctors       repo.DoctorRepository
	Receptionists repo.ReceptionistRepository
	JWT           *helpers.JWTManager
	Codec         *verification.Codec
	Publisher     FactPublisher
	Redis         *redis.Client
	Logger        *logrus.Logger
	ES            *elasticsearch.Client
	ESIndex       string

	EmailQueue      string
	ConfirmEmailURL string
	MailSendEnabled bool

	validate *validator.Validate
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

func NewAccountService(
	accounts repo.AccountRepository,
	doctors repo.DoctorRepository,
	receptionists repo.ReceptionistRepository,
	jwt *helpers.JWTManager,
	codec *verification.Codec,
	publisher FactPublisher,
	rdb *redis.Client,
	logger *logrus.Logger,
	es *elasticsearch.Client,
	esIndex string,
	emailQueue, confirmEmailURL string,
	mailSendEnabled bool,
) *AccountService {
	return &AccountService{
		Accounts:        accounts,
		Doctors:         doctors,
		Receptionists:   receptionists,
		JWT:             jwt,
		Codec:           codec,
		Publisher:       publisher,
		Redis:           rdb,
		Logger:          logger,
		ES:              es,
		ESIndex:         esIndex,
		EmailQueue:      emailQueue,
		ConfirmEmailURL: confirmEmailURL,
		MailSendEnabled: mailSendEnabled,
		validate:        validator.New(),
	}
}

const accountCacheTTL = 5 * time.Minute

func keyAccountCache(accountID string) string { return "account:cache:" + accountID }

// validateRegistration aggregates every violated field instead of stopping at
// the first one.
func (s *AccountService) validateRegistration(email, password string) error {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "is required"
	} else if err := s.validate.Var(email, "email"); err != nil {
		fields["email"] = "must be a valid email"
	}
	if password == "" {
		fields["password"] = "is required"
	} else if err := s.validate.Var(password, "min=8"); err != nil {
		fields["password"] = "min length 8"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields)
	}
	return nil
}

// Register creates a Patient account, dispatches the verification email and
// publishes the account-created fact. Publish or mail failures are logged and
// never fail the registration itself.
func (s *AccountService) Register(ctx context.Context, email, password string) (*entity.Account, TokenPair, error) {
	if err := s.validateRegistration(email, password); err != nil {
		return nil, TokenPair{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))

	exists, err := s.Accounts.EmailExists(ctx, email)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if exists {
		return nil, TokenPair{}, apperrors.NewConflictError("email already registered")
	}

	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, TokenPair{}, err
	}

	refresh, err := s.JWT.GenerateRefreshToken()
	if err != nil {
		return nil, TokenPair{}, err
	}

	account := &entity.Account{
		ID:                 uuid.NewString(),
		Email:              email,
		PasswordHash:       hash,
		Role:               entity.RolePatient,
		IsEmailVerified:    false,
		RefreshToken:       refresh,
		RefreshTokenExpiry: s.JWT.RefreshExpiry(),
		CreatedBy:          createdBySelfRegistration,
		UpdatedBy:          createdBySelfRegistration,
	}
	if err := s.Accounts.Create(ctx, account); err != nil {
		return nil, TokenPair{}, err
	}

	access, aexp, err := s.JWT.GenerateAccessToken(account.ID, string(account.Role))
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.sendVerificationEmail(ctx, account)
	s.publishAccountCreated(ctx, account)
	s.indexAccount(ctx, account)

	pair := TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: account.RefreshTokenExpiry,
	}
	return account, pair, nil
}

// Login verifies credentials and rotates the refresh credential. Absent email
// and wrong password produce the identical error so responses never reveal
// whether an address is registered.
func (s *AccountService) Login(ctx context.Context, email, password string) (*entity.Account, TokenPair, error) {
	invalid := apperrors.NewUnauthorizedError("invalid email or password")

	account, err := s.Accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		var nf *apperrors.NotFoundError
		if errors.As(err, &nf) {
			return nil, TokenPair{}, invalid
		}
		return nil, TokenPair{}, err
	}
	if !helpers.CompareHashAndPassword(account.PasswordHash, password) {
		return nil, TokenPair{}, invalid
	}
	if err := s.checkWorkStatus(ctx, account); err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issueAndStorePair(ctx, account)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return account, pair, nil
}

// checkWorkStatus gates staff logins on the mirrored sub-profile status.
func (s *AccountService) checkWorkStatus(ctx context.Context, account *entity.Account) error {
	inactive := apperrors.NewUnauthorizedError("account is not active")
	switch account.Role {
	case entity.RoleDoctor:
		d, err := s.Doctors.GetByAccountID(ctx, account.ID)
		if err != nil {
			var nf *apperrors.NotFoundError
			if errors.As(err, &nf) {
				return inactive
			}
			return err
		}
		if d.Status != entity.ProfileStatusAtWork {
			return inactive
		}
	case entity.RoleReceptionist:
		rec, err := s.Receptionists.GetByAccountID(ctx, account.ID)
		if err != nil {
			var nf *apperrors.NotFoundError
			if errors.As(err, &nf) {
				return inactive
			}
			return err
		}
		if rec.Status != entity.ProfileStatusAtWork {
			return inactive
		}
	}
	return nil
}

func (s *AccountService) issueAndStorePair(ctx context.Context, account *entity.Account) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(account.ID, string(account.Role))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.JWT.GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	rexp := s.JWT.RefreshExpiry()
	if err := s.Accounts.SaveRefreshToken(ctx, account.ID, refresh, rexp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: rexp,
	}, nil
}

// Refresh exchanges a live refresh token for a new pair. The stored credential
// is swapped with a compare-and-swap keyed on the presented value, so a
// superseded token can never win a concurrent rotation.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*entity.Account, TokenPair, error) {
	invalid := apperrors.NewUnauthorizedError("invalid refresh token")
	if refreshToken == "" {
		return nil, TokenPair{}, invalid
	}

	account, err := s.Accounts.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		var nf *apperrors.NotFoundError
		if errors.As(err, &nf) {
			return nil, TokenPair{}, invalid
		}
		return nil, TokenPair{}, err
	}
	if time.Now().After(account.RefreshTokenExpiry) {
		return nil, TokenPair{}, invalid
	}

	access, aexp, err := s.JWT.GenerateAccessToken(account.ID, string(account.Role))
	if err != nil {
		return nil, TokenPair{}, err
	}
	next, err := s.JWT.GenerateRefreshToken()
	if err != nil {
		return nil, TokenPair{}, err
	}
	rexp := s.JWT.RefreshExpiry()

	swapped, err := s.Accounts.ReplaceRefreshToken(ctx, account.ID, refreshToken, next, rexp)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !swapped {
		return nil, TokenPair{}, invalid
	}

	pair := TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       next,
		RefreshTokenExpiry: rexp,
	}
	return account, pair, nil
}

// ConfirmEmail resolves the protected token and marks the email verified.
// Returns false without mutating state when the token does not check out.
// Calling it again with the same valid token is a no-op that still reports
// success.
func (s *AccountService) ConfirmEmail(ctx context.Context, accountID, token string) (bool, error) {
	account, err := s.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return false, err
	}

	email, err := s.Codec.ResolveToken(token)
	if err != nil || !strings.EqualFold(email, account.Email) {
		return false, nil
	}
	if account.IsEmailVerified {
		return true, nil
	}
	if err := s.Accounts.SetEmailVerified(ctx, account.ID); err != nil {
		return false, err
	}
	s.dropCachedAccount(ctx, account.ID)
	account.IsEmailVerified = true
	s.indexAccount(ctx, account)
	return true, nil
}

func (s *AccountService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	exists, err := s.Accounts.EmailExists(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (s *AccountService) GetAll(ctx context.Context) ([]*entity.Account, error) {
	return s.Accounts.GetAll(ctx)
}

func (s *AccountService) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return s.Accounts.GetByID(ctx, id)
}

func (s *AccountService) GetByIDs(ctx context.Context, ids []string) ([]*entity.Account, error) {
	return s.Accounts.GetByIDs(ctx, ids)
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return s.Accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// GetByAccessToken verifies the presented token before trusting its subject.
// The hot path for service-to-service identity lookups, so results go through
// a short-lived cache.
func (s *AccountService) GetByAccessToken(ctx context.Context, token string) (*entity.Account, error) {
	subject, err := s.JWT.SubjectFromAccessToken(token)
	if err != nil {
		if errors.Is(err, helpers.ErrExpiredToken) {
			return nil, apperrors.NewUnauthorizedError("access token expired")
		}
		return nil, apperrors.NewUnauthorizedError("invalid access token")
	}

	if s.Redis != nil {
		var cached entity.Account
		if ok, err := helpers.RedisGetJSON(ctx, s.Redis, keyAccountCache(subject), &cached); err == nil && ok {
			return &cached, nil
		}
	}

	account, err := s.Accounts.GetByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	s.cacheAccount(ctx, account)
	return account, nil
}

// cacheAccount stores a stripped copy; credential fields never enter the cache.
func (s *AccountService) cacheAccount(ctx context.Context, account *entity.Account) {
	if s.Redis == nil {
		return
	}
	c := *account
	c.PasswordHash = ""
	c.RefreshToken = ""
	c.RefreshTokenExpiry = time.Time{}
	if err := helpers.RedisSetJSON(ctx, s.Redis, keyAccountCache(c.ID), c, accountCacheTTL); err != nil {
		s.Logger.WithError(err).Warn("account cache write failed")
	}
}

func (s *AccountService) dropCachedAccount(ctx context.Context, accountID string) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisDel(ctx, s.Redis, keyAccountCache(accountID)); err != nil {
		s.Logger.WithError(err).Warn("account cache invalidation failed")
	}
}

func (s *AccountService) sendVerificationEmail(ctx context.Context, account *entity.Account) {
	if !s.MailSendEnabled || s.Publisher == nil {
		return
	}
	token, err := s.Codec.GenerateToken(account.Email)
	if err != nil {
		s.Logger.WithError(err).WithField("account_id", account.ID).Error("verification token generation failed")
		return
	}
	link := s.ConfirmEmailURL + "?accountId=" + account.ID + "&token=" + token
	html, err := mailer.RenderVerificationEmail(link)
	if err != nil {
		s.Logger.WithError(err).Error("verification email render failed")
		return
	}
	job := mailer.EmailJob{
		To:      account.Email,
		Subject: "Confirm your email address",
		HTML:    html,
	}
	if err := s.Publisher.Publish(ctx, s.EmailQueue, rabbitmq.KindEmailJob, job); err != nil {
		s.Logger.WithError(err).WithField("account_id", account.ID).Warn("verification email enqueue failed")
	}
}

func (s *AccountService) publishAccountCreated(ctx context.Context, account *entity.Account) {
	if s.Publisher == nil {
		return
	}
	fact := rabbitmq.AccountFact{
		ID:              account.ID,
		Email:           account.Email,
		PhoneNumber:     account.PhoneNumber,
		Role:            string(account.Role),
		PhotoID:         account.PhotoID,
		IsEmailVerified: account.IsEmailVerified,
	}
	if err := s.Publisher.Publish(ctx, rabbitmq.QueueAccountCreated, rabbitmq.KindAccountCreated, fact); err != nil {
		s.Logger.WithError(err).WithField("account_id", account.ID).Warn("account-created publish failed")
	}
}

func (s *AccountService) indexAccount(ctx context.Context, account *entity.Account) {
	if s.ES == nil || s.ESIndex == "" {
		return
	}
	doc := map[string]any{
		"id":                account.ID,
		"email":             account.Email,
		"role":              account.Role,
		"phone_number":      account.PhoneNumber,
		"is_email_verified": account.IsEmailVerified,
		"created_at":        account.CreatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESIndex, DocumentID: account.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.Logger.WithError(err).WithField("account_id", account.ID).Warn("es index failed")
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		s.Logger.WithField("status", res.Status()).WithField("account_id", account.ID).Warn("es index response error")
	}
}

// SearchAccounts performs a simple multi_match over email and phone number.
func (s *AccountService) SearchAccounts(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "phone_number"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
