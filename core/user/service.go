package user

import (
	"context"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/core"
)

var (
	// errors
	ErrNotFound            = errors.New("user not found")
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrAccountDeactivated  = errors.New("account deactivated")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

type Repository interface {
	CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
	CreateUser(ctx context.Context, usr User) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, usr User) (User, error)

	CreateRefreshToken(ctx context.Context, tok RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type Service struct {
	repo       Repository
	mailSvc    core.EmailService
	validate   *validator.Validate
	translator ut.Translator
	conf       *core.Config
	tokenGen   tokenGenerator
}

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		mailSvc:    mailSvc,
		validate:   validate,
		translator: translator,
		conf:       conf,
		tokenGen:   tokenGenerator{secretKey: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta},
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(ctx, svc); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Authenticate checks the credentials and records the login.
// It never tells which of email or password was wrong.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

// IssueRefreshToken creates a new refresh token for usr.
func (svc *Service) IssueRefreshToken(ctx context.Context, usr User) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", errors.Wrap(err, "generating refresh token")
	}
	rt := RefreshToken{Token: token, UserID: usr.ID, IssuedAt: time.Now().UTC()}
	if err = svc.repo.CreateRefreshToken(ctx, rt); err != nil {
		return "", errors.Wrap(err, "storing refresh token")
	}
	return token, nil
}

// RotateRefreshToken exchanges a refresh token for a new one.
// Presenting an already revoked token revokes every token of its user.
func (svc *Service) RotateRefreshToken(ctx context.Context, token string) (User, string, error) {
	rt, err := svc.repo.GetRefreshToken(ctx, token)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, "", ErrInvalidRefreshToken
		}
		return User{}, "", errors.Wrap(err, "finding refresh token")
	}
	if rt.Revoked {
		if err = svc.repo.RevokeUserRefreshTokens(ctx, rt.UserID); err != nil {
			return User{}, "", errors.Wrap(err, "revoking user refresh tokens")
		}
		return User{}, "", ErrInvalidRefreshToken
	}
	if time.Now().After(rt.IssuedAt.Add(svc.conf.Server.JWTRefreshExpirationDelta)) {
		return User{}, "", ErrInvalidRefreshToken
	}

	usr, err := svc.repo.GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, "", ErrInvalidRefreshToken
		}
		return User{}, "", errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return User{}, "", ErrAccountDeactivated
	}

	if err = svc.repo.RevokeRefreshToken(ctx, token); err != nil {
		return User{}, "", errors.Wrap(err, "revoking refresh token")
	}
	newToken, err := svc.IssueRefreshToken(ctx, usr)
	if err != nil {
		return User{}, "", err
	}
	return usr, newToken, nil
}

// SignOut revokes every refresh token of the user.
func (svc *Service) SignOut(ctx context.Context, userID string) error {
	return errors.Wrap(svc.repo.RevokeUserRefreshTokens(ctx, userID), "revoking user refresh tokens")
}

type passwordResetData struct {
	Name  string
	UID   string
	Token string
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{Name: usr.Name, UID: EncodeUID(usr), Token: svc.tokenGen.makeToken(usr)},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := data.Validate(svc.validate, svc.translator); err != nil {
		return err
	}

	invalidErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})
	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	return svc.setPassword(ctx, usr, data.Password)
}

// SetPassword replaces a password without a reset token (operator use).
func (svc *Service) SetPassword(ctx context.Context, data SetUserPassword) error {
	if err := data.Validate(svc.validate, svc.translator); err != nil {
		return err
	}
	usr, err := svc.GetByEmail(ctx, data.Email)
	if err != nil {
		return err
	}
	return svc.setPassword(ctx, usr, data.Password)
}

func (svc *Service) setPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return svc.SignOut(ctx, usr.ID)
}
