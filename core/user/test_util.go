package user

import (
	"time"

	"github.com/collegepense/pense/core"
)

// NewTestConfig returns the configuration used by tests that need a user Service.
func NewTestConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Pense",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:54321",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
			SignInRate:                100,
			SignInBurst:               100,
		},
	}
}

// NewTestService returns a Service with every validator registered.
func NewTestService(repo Repository, mailSvc core.EmailService, conf ...*core.Config) *Service {
	c := NewTestConfig()
	if len(conf) > 0 {
		c = conf[0]
	}
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	RegisterValidators(validate, translator)
	return NewService(repo, mailSvc, validate, translator, c)
}
