package screens

import (
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/session"
)

type (
	signInForm struct {
		Email    string `json:"email" validate:"required,contains=@,contains=."`
		Password string `json:"password" validate:"required"`
	}

	recoverForm struct {
		Email string `json:"email" validate:"required,contains=@,contains=."`
	}
)

// SignIn drives the sign-in form. It never navigates: the router follows the session store.
type SignIn struct {
	lifecycle
	auth       session.Auth
	validate   *validator.Validate
	translator ut.Translator

	form signInForm
}

func NewSignIn(auth session.Auth, validate *validator.Validate, translator ut.Translator) *SignIn {
	return &SignIn{auth: auth, validate: validate, translator: translator}
}

func (s *SignIn) SetEmail(email string) {
	s.mu.Lock()
	s.form.Email = email
	s.mu.Unlock()
}

func (s *SignIn) SetPassword(pwd string) {
	s.mu.Lock()
	s.form.Password = pwd
	s.mu.Unlock()
}

// Credentials returns the form as typed.
func (s *SignIn) Credentials() (email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Email, s.form.Password
}

// Submit signs in with the trimmed email. A failure surfaces a notice that never tells which
// credential was wrong.
func (s *SignIn) Submit(ctx context.Context) error {
	s.mu.Lock()
	form := s.form
	s.mu.Unlock()

	form.Email = core.CleanString(form.Email)
	if err := core.TranslateValidation(s.validate.Struct(form), s.translator); err != nil {
		s.mu.Lock()
		s.notice = errorNotice("sign in", err)
		s.mu.Unlock()
		return err
	}

	gen, err := s.beginWrite()
	if err != nil {
		return err
	}
	_, err = s.auth.SignIn(ctx, form.Email, form.Password)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endWrite()
	if gen != s.gen {
		return nil
	}
	if err != nil {
		if !core.IsAuthError(err, core.AuthNetwork) {
			err = core.NewAuthError(core.AuthInvalidCredentials, err)
		}
		s.notice = errorNotice("sign in", err)
		return err
	}
	s.form.Password = ""
	s.notice = successNotice("Signed in.")
	return nil
}

// RecoverPassword requests a password reset for the typed email. The notice is the same whether
// or not an account exists.
func (s *SignIn) RecoverPassword(ctx context.Context) error {
	s.mu.Lock()
	form := recoverForm{Email: core.CleanString(s.form.Email)}
	s.mu.Unlock()

	if err := core.TranslateValidation(s.validate.Struct(form), s.translator); err != nil {
		s.mu.Lock()
		s.notice = errorNotice("send the password reset", err)
		s.mu.Unlock()
		return err
	}

	gen, err := s.beginWrite()
	if err != nil {
		return err
	}
	err = s.auth.RecoverPassword(ctx, form.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endWrite()
	if gen != s.gen {
		return nil
	}
	if err != nil {
		s.notice = errorNotice("send the password reset", err)
		return err
	}
	s.notice = &Notice{
		Kind:    NoticeInfo,
		Title:   "Check your inbox",
		Message: fmt.Sprintf("If an account exists for %s, a reset code is on its way.", form.Email),
	}
	return nil
}
