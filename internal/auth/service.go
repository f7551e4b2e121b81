package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/authtoken"
	"github.com/frahmantamala/auth-rbac/internal/core/common/validation"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	userDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/user"
	"github.com/frahmantamala/auth-rbac/internal/core/events"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/metrics"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	"github.com/frahmantamala/auth-rbac/internal/user"
	"github.com/frahmantamala/auth-rbac/internal/verification"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dependencies wires the account flows. Tx, Events, Metrics and Clock are
// optional. Without Tx the writes of one flow are not atomic.
type Dependencies struct {
	Tx       datamodel.Transactor
	Users    user.RepositoryAPI
	Verifier Verifier
	Sessions SessionStore
	Roles    RoleResolver
	Hasher   PasswordHasher
	Events   events.Publisher
	Metrics  Recorder
	Clock    credential.Clock
	Logger   *slog.Logger
}

type Service struct {
	tx       datamodel.Transactor
	users    user.RepositoryAPI
	verifier Verifier
	sessions SessionStore
	roles    RoleResolver
	hasher   PasswordHasher
	events   events.Publisher
	metrics  Recorder
	clock    credential.Clock
	logger   *slog.Logger
}

func NewService(deps Dependencies) *Service {
	if deps.Tx == nil {
		deps.Tx = datamodel.NoTx{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NopRecorder{}
	}
	if deps.Clock == nil {
		deps.Clock = credential.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		tx:       deps.Tx,
		users:    deps.Users,
		verifier: deps.Verifier,
		sessions: deps.Sessions,
		roles:    deps.Roles,
		hasher:   deps.Hasher,
		events:   deps.Events,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// Register creates an unverified user holding the default role and sends a
// verification code to the address. It does not log the user in. The user
// row, its role and the code are stored in one transaction.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*user.User, error) {
	if err := validation.Check(dto); err != nil {
		return nil, err
	}
	email := credential.NormalizeEmail(dto.Email)

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := s.clock.Now()
	row := &userDatamodel.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		PasswordHash: &hash,
		Status:       userDatamodel.StatusUnverified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var issued *verification.Issued
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := s.users.CreateIfEmailFree(ctx, row)
		if err != nil {
			return internal.NewInternalError("failed to create user", err)
		}
		if !created {
			return internal.ErrEmailAlreadyInUse
		}
		if err := s.roles.AssignDefaultRole(ctx, row.ID); err != nil {
			return err
		}
		issued, err = s.verifier.Issue(ctx, verification.Identity{UserID: row.ID, Email: email}, tokenDatamodel.TypeUserVerification)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announceCode(ctx, issued)
	s.publish(ctx, events.NewUserRegisteredEvent(row.ID, email, now))
	s.logger.InfoContext(ctx, "user registered", "user_id", row.ID)

	return user.FromDataModelWithRoles(row, []string{rbac.DefaultRole}), nil
}

// VerifyEmail activates the user owning email once the code matches.
func (s *Service) VerifyEmail(ctx context.Context, dto EmailTokenDTO) (*user.User, error) {
	if err := validation.Check(dto); err != nil {
		return nil, err
	}
	email := credential.NormalizeEmail(dto.Email)

	row, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrInvalidVerificationToken
	}

	record, err := s.verifier.Find(ctx, verification.Identity{UserID: row.ID, Email: email}, dto.Token, tokenDatamodel.TypeUserVerification)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.UpdateStatus(ctx, row.ID, userDatamodel.StatusActive, now); err != nil {
			return internal.NewInternalError("failed to activate user", err)
		}
		return s.verifier.Consume(ctx, record.ID)
	})
	if err != nil {
		return nil, err
	}
	row.Status = userDatamodel.StatusActive
	row.UpdatedAt = now

	s.logger.InfoContext(ctx, "email verified", "user_id", row.ID)
	return user.FromDataModel(row), nil
}

func (s *Service) ResendVerificationEmail(ctx context.Context, dto EmailDTO) error {
	if err := validation.Check(dto); err != nil {
		return err
	}
	row, err := s.requireByEmail(ctx, credential.NormalizeEmail(dto.Email))
	if err != nil {
		return err
	}
	if row.IsActive() {
		return internal.ErrUserAlreadyVerified
	}
	return s.sendCode(ctx, row.ID, row.Email, tokenDatamodel.TypeUserVerification)
}

// Login checks the credentials and opens a session. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*authtoken.Pair, error) {
	if err := validation.Check(dto); err != nil {
		return nil, err
	}

	row, err := s.findByEmail(ctx, credential.NormalizeEmail(dto.Email))
	if err != nil {
		return nil, err
	}
	if row == nil || row.PasswordHash == nil || !s.hasher.Compare(dto.Password, *row.PasswordHash) {
		s.metrics.LoginAttempt(metrics.OutcomeFailure)
		return nil, internal.ErrInvalidCredentials
	}
	if row.Status == userDatamodel.StatusInactive {
		s.metrics.LoginAttempt(metrics.OutcomeForbidden)
		return nil, internal.ErrUserInactive
	}

	subject, err := s.subject(ctx, row)
	if err != nil {
		return nil, err
	}
	pair, err := s.sessions.IssuePair(ctx, subject)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginAttempt(metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "user logged in", "user_id", row.ID)
	return pair, nil
}

// Refresh exchanges a stored pair for a new one. The old pair stops
// validating in the same transaction that stores the new one.
func (s *Service) Refresh(ctx context.Context, dto RefreshTokenDTO) (*authtoken.Pair, error) {
	if err := validation.Check(dto); err != nil {
		return nil, err
	}

	pair, err := s.refresh(ctx, dto)
	if err != nil {
		s.metrics.TokenRefresh(metrics.OutcomeFailure)
		return nil, err
	}
	s.metrics.TokenRefresh(metrics.OutcomeSuccess)
	return pair, nil
}

func (s *Service) refresh(ctx context.Context, dto RefreshTokenDTO) (*authtoken.Pair, error) {
	claims, err := s.sessions.DecodeAccess(dto.AccessToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.ValidateRefresh(ctx, dto.RefreshToken, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !session.HoldsAccessToken(dto.AccessToken) {
		return nil, internal.ErrInvalidRefreshToken
	}

	row, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if row == nil {
		return nil, internal.ErrInvalidRefreshToken
	}
	if row.Status == userDatamodel.StatusInactive {
		return nil, internal.ErrUserInactive
	}

	subject, err := s.subject(ctx, row)
	if err != nil {
		return nil, err
	}
	return s.sessions.Rotate(ctx, dto.RefreshToken, subject)
}

// Logout deletes the session holding accessToken.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return internal.ErrUnauthorized
	}
	if err := s.sessions.Revoke(ctx, accessToken); err != nil {
		if authtoken.IsSessionNotFound(err) {
			return internal.ErrUnauthorized
		}
		return err
	}
	s.metrics.SessionsRevoked(1)
	return nil
}

// ChangeEmail records dto.Email as the pending address of userID and sends a
// code to it. The primary email changes only once the code is verified.
func (s *Service) ChangeEmail(ctx context.Context, userID string, dto EmailDTO) (*user.User, error) {
	if err := validation.Check(dto); err != nil {
		return nil, err
	}
	email := credential.NormalizeEmail(dto.Email)

	row, err := s.requireByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !row.IsActive() {
		return nil, internal.NewUserStatusError(row.Status)
	}
	if email == row.Email {
		return nil, internal.ErrNewEmailAlreadyInUse
	}

	taken, err := s.users.EmailTaken(ctx, email, row.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to check email", err)
	}
	if taken {
		return nil, internal.ErrNewEmailAlreadyInUse
	}

	now := s.clock.Now()
	var issued *verification.Issued
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.users.SetPendingEmail(ctx, row.ID, email, now)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return internal.ErrNewEmailAlreadyInUse
			}
			return internal.NewInternalError("failed to store pending email", err)
		}
		if !ok {
			// lost a race against another writer of the same address or a status change
			return internal.ErrNewEmailAlreadyInUse
		}
		issued, err = s.verifier.Issue(ctx, verification.Identity{UserID: row.ID, Email: email}, tokenDatamodel.TypeUserVerification)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.announceCode(ctx, issued)

	row.NewEmail = &email
	row.UpdatedAt = now
	return user.FromDataModel(row), nil
}

// CancelChangeEmail drops the pending request for the given pending address.
func (s *Service) CancelChangeEmail(ctx context.Context, dto EmailDTO) error {
	if err := validation.Check(dto); err != nil {
		return err
	}

	row, err := s.users.FindByNewEmail(ctx, credential.NormalizeEmail(dto.Email))
	if err != nil {
		return internal.NewInternalError("failed to get user", err)
	}
	if row == nil {
		return internal.ErrNoChangeEmailRequest
	}

	ok, err := s.users.ClearPendingEmail(ctx, row.ID, s.clock.Now())
	if err != nil {
		return internal.NewInternalError("failed to clear pending email", err)
	}
	if !ok {
		return internal.ErrNoChangeEmailRequest
	}
	return s.verifier.CancelAll(ctx, row.ID, tokenDatamodel.TypeUserVerification)
}

// VerifyChangeEmail promotes the pending address of userID once the code
// sent to it matches.
func (s *Service) VerifyChangeEmail(ctx context.Context, userID string, dto TokenDTO) (*user.User, error) {
	if err := validation.Check(dto); err != nil {
		return nil, err
	}

	row, err := s.requireByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row.NewEmail == nil {
		return nil, internal.ErrNoChangeEmailRequest
	}
	pending := *row.NewEmail

	record, err := s.verifier.Find(ctx, verification.Identity{UserID: row.ID, Email: pending}, dto.Token, tokenDatamodel.TypeUserVerification)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.users.PromotePendingEmail(ctx, row.ID, pending, now)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return internal.ErrNewEmailAlreadyInUse
			}
			return internal.NewInternalError("failed to promote pending email", err)
		}
		if !ok {
			return internal.ErrNoChangeEmailRequest
		}
		return s.verifier.Consume(ctx, record.ID)
	})
	if err != nil {
		return nil, err
	}

	row.Email = pending
	row.NewEmail = nil
	row.UpdatedAt = now
	s.logger.InfoContext(ctx, "email changed", "user_id", row.ID)
	return user.FromDataModel(row), nil
}

// SetUserEmail overwrites the primary email without verification.
func (s *Service) SetUserEmail(ctx context.Context, dto SetUserEmailDTO) (*user.User, error) {
	if err := validation.Check(dto); err != nil {
		return nil, err
	}
	email := credential.NormalizeEmail(dto.NewEmail)

	row, err := s.requireByID(ctx, dto.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, err := s.users.SetEmail(ctx, row.ID, email, now)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, internal.ErrEmailAlreadyInUse
		}
		return nil, internal.NewInternalError("failed to set email", err)
	}
	if !ok {
		return nil, internal.ErrEmailAlreadyInUse
	}

	row.Email = email
	row.UpdatedAt = now
	s.logger.InfoContext(ctx, "email set by administrator", "user_id", row.ID)
	return user.FromDataModel(row), nil
}

// ChangePassword replaces the password of userID after checking the old one
// and signs the user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID string, dto ChangePasswordDTO) error {
	if dto.OldPassword != "" && dto.OldPassword == dto.NewPassword {
		return internal.ErrNewPasswordSameAsOld
	}
	if err := validation.Check(dto); err != nil {
		return err
	}

	row, err := s.requireByID(ctx, userID)
	if err != nil {
		return err
	}
	if !row.IsActive() {
		return internal.NewUserStatusError(row.Status)
	}
	if row.PasswordHash == nil {
		return internal.ErrUserPasswordNotSet
	}
	if !s.hasher.Compare(dto.OldPassword, *row.PasswordHash) {
		return internal.ErrOldPasswordIsIncorrect
	}
	for _, known := range row.KnownPasswordHashes() {
		if s.hasher.Compare(dto.NewPassword, known) {
			return internal.ErrPasswordAlreadyUsed
		}
	}

	return s.setPassword(ctx, row, dto.NewPassword, events.PasswordChangeByUser, nil)
}

// SetUserPassword overwrites the password without checking the old one.
func (s *Service) SetUserPassword(ctx context.Context, dto SetUserPasswordDTO) error {
	if err := validation.Check(dto); err != nil {
		return err
	}
	row, err := s.requireByID(ctx, dto.UserID)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, row, dto.Password, events.PasswordChangeByAdmin, nil)
}

// ForgotPassword sends a reset code to an existing user.
func (s *Service) ForgotPassword(ctx context.Context, dto EmailDTO) error {
	if err := validation.Check(dto); err != nil {
		return err
	}
	row, err := s.requireByEmail(ctx, credential.NormalizeEmail(dto.Email))
	if err != nil {
		return err
	}
	return s.sendCode(ctx, row.ID, row.Email, tokenDatamodel.TypeForgotPassword)
}

// RetryForgotPassword issues a fresh reset code, cancelling the previous one.
func (s *Service) RetryForgotPassword(ctx context.Context, dto EmailDTO) error {
	return s.ForgotPassword(ctx, dto)
}

// VerifyForgotPassword redeems a reset code and stores the new password.
func (s *Service) VerifyForgotPassword(ctx context.Context, dto VerifyForgotPasswordDTO) (*user.User, error) {
	if err := validation.Check(dto); err != nil {
		return nil, err
	}

	row, record, err := s.findResetCode(ctx, dto.Email, dto.Token)
	if err != nil {
		return nil, err
	}
	consume := func(ctx context.Context) error {
		return s.verifier.Consume(ctx, record.ID)
	}
	if err := s.setPassword(ctx, row, dto.Password, events.PasswordChangeByReset, consume); err != nil {
		return nil, err
	}
	return user.FromDataModel(row), nil
}

// VerifyForgotPasswordCode only checks that the code is redeemable.
func (s *Service) VerifyForgotPasswordCode(ctx context.Context, dto EmailTokenDTO) error {
	if err := validation.Check(dto); err != nil {
		return err
	}
	_, _, err := s.findResetCode(ctx, dto.Email, dto.Token)
	return err
}

// VerifyUserPassword reports whether password is the current password of
// userID.
func (s *Service) VerifyUserPassword(ctx context.Context, userID string, dto PasswordDTO) (bool, error) {
	if err := validation.Check(dto); err != nil {
		return false, err
	}
	row, err := s.requireByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !row.IsActive() {
		return false, internal.NewUserStatusError(row.Status)
	}
	if row.PasswordHash == nil {
		return false, internal.ErrUserPasswordNotSet
	}
	return s.hasher.Compare(dto.Password, *row.PasswordHash), nil
}

// Me returns the projection of userID with its roles.
func (s *Service) Me(ctx context.Context, userID string) (*user.User, error) {
	row, err := s.requireByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	grants, err := s.roles.Resolve(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return user.FromDataModelWithRoles(row, grants.Roles), nil
}

func (s *Service) AssignRole(ctx context.Context, dto RoleAssignmentDTO) error {
	if err := validation.Check(dto); err != nil {
		return err
	}
	if _, err := s.requireByID(ctx, dto.UserID); err != nil {
		return err
	}
	return s.roles.AssignRole(ctx, dto.UserID, dto.RoleID)
}

func (s *Service) RevokeRole(ctx context.Context, dto RoleAssignmentDTO) error {
	if err := validation.Check(dto); err != nil {
		return err
	}
	if _, err := s.requireByID(ctx, dto.UserID); err != nil {
		return err
	}
	return s.roles.RevokeRole(ctx, dto.UserID, dto.RoleID)
}

// setPassword stores the new hash and revokes every session of row in one
// transaction. then, when set, joins that transaction last.
func (s *Service) setPassword(ctx context.Context, row *userDatamodel.User, password, reason string, then func(ctx context.Context) error) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}

	now := s.clock.Now()
	history := row.PushPasswordHistory()
	var revoked int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.users.UpdatePassword(ctx, row.ID, hash, history, now)
		if err != nil {
			return internal.NewInternalError("failed to update password", err)
		}
		if !ok {
			return internal.ErrUserNotFound
		}
		if revoked, err = s.sessions.RevokeAllForUser(ctx, row.ID); err != nil {
			return err
		}
		if then != nil {
			return then(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	row.PasswordHash = &hash
	row.PasswordHistory = history
	row.UpdatedAt = now

	s.metrics.SessionsRevoked(revoked)

	s.publish(ctx, events.NewPasswordChangedEvent(row.ID, reason, now))
	if revoked > 0 {
		s.publish(ctx, events.NewSessionsRevokedEvent(row.ID, revoked, now))
	}
	s.logger.InfoContext(ctx, "password updated", "user_id", row.ID, "reason", reason, "sessions_revoked", revoked)
	return nil
}

func (s *Service) findResetCode(ctx context.Context, rawEmail, token string) (*userDatamodel.User, *tokenDatamodel.VerificationToken, error) {
	email := credential.NormalizeEmail(rawEmail)
	row, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if row == nil {
		return nil, nil, internal.ErrInvalidVerificationToken
	}
	record, err := s.verifier.Find(ctx, verification.Identity{UserID: row.ID, Email: email}, token, tokenDatamodel.TypeForgotPassword)
	if err != nil {
		return nil, nil, err
	}
	return row, record, nil
}

// sendCode issues a code and hands it to the notification pipeline.
func (s *Service) sendCode(ctx context.Context, userID, email, purpose string) error {
	issued, err := s.verifier.Issue(ctx, verification.Identity{UserID: userID, Email: email}, purpose)
	if err != nil {
		return err
	}
	s.announceCode(ctx, issued)
	return nil
}

// announceCode publishes an issued code. Callers holding a transaction call
// it after commit.
func (s *Service) announceCode(ctx context.Context, issued *verification.Issued) {
	record := issued.Record
	s.publish(ctx, events.NewVerificationIssuedEvent(record.UserID, record.Email, record.Type, issued.Token, record.ExpiresAt, s.clock.Now()))
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func (s *Service) subject(ctx context.Context, row *userDatamodel.User) (credential.Subject, error) {
	grants, err := s.roles.Resolve(ctx, row.ID)
	if err != nil {
		return credential.Subject{}, err
	}
	return credential.Subject{UserID: row.ID, Email: row.Email, Roles: grants.Roles}, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	row, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	return row, nil
}

func (s *Service) requireByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	row, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	return row, nil
}

func (s *Service) requireByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	row, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	return row, nil
}
