package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/middleware/authware"
)

type AuthControllerRoutes struct {
	Register           string
	Login              string
	VerifyEmail        string
	ResendVerification string
	RefreshAccessToken string
	Logout             string
	Profile            string
	Users              string
}

type AuthController struct {
	auth   *Authenticator
	cookie *RefreshCookie
	logger logging.Logger
	Routes *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger logging.Logger) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if logger != nil {
			a.logger = logger
		}
		return a
	}
}

func NewAuthController(auther *Authenticator, cookie *RefreshCookie, opts ...AuthControllerOption) *AuthController {
	a := &AuthController{
		auth:   auther,
		cookie: cookie,
		logger: logging.Console("AUTH"),
		Routes: &AuthControllerRoutes{
			Register:           "/register",
			Login:              "/login",
			VerifyEmail:        "/verify-email/:token",
			ResendVerification: "/resend-verification",
			RefreshAccessToken: "/login/access-token",
			Logout:             "/logout",
			Profile:            "/profile",
			Users:              "/users",
		},
	}
	for _, opt := range opts {
		a = opt(a)
	}
	return a
}

// Mount registers the /auth routes on router. protected guards the
// routes that need an authenticated user.
func (a *AuthController) Mount(router fiber.Router, protected fiber.Handler) {
	router.Post(a.Routes.Register, a.RegisterPost)
	router.Post(a.Routes.Login, a.LoginPost)
	router.Get(a.Routes.VerifyEmail, a.VerifyEmail)
	router.Post(a.Routes.ResendVerification, a.ResendVerification)
	router.Post(a.Routes.RefreshAccessToken, a.RefreshAccessToken)
	router.Post(a.Routes.Logout, a.Logout)
	router.Get(a.Routes.Profile, protected, a.Profile)
	router.Get(a.Routes.Users, protected, a.ListUsers)
}

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r CredentialsRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
		)
	}, "Invalid credentials payload")
}

// ResendVerificationRequest is the body of resend-verification.
type ResendVerificationRequest struct {
	Email string `json:"email" form:"email"`
}

func (r ResendVerificationRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
		)
	}, "Invalid resend verification payload")
}

func (a *AuthController) RegisterPost(c *fiber.Ctx) error {
	payload := new(CredentialsRequest)
	if err := bindPayload(c, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	user, err := a.auth.Register(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    user,
		"message": MessageRegistered,
	})
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(CredentialsRequest)
	if err := bindPayload(c, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	user, pair, err := a.auth.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	a.cookie.Set(c, pair.RefreshToken, pair.RefreshExpiresAt)

	return c.JSON(fiber.Map{
		"user":        user,
		"accessToken": pair.AccessToken,
	})
}

func (a *AuthController) VerifyEmail(c *fiber.Ctx) error {
	if _, err := a.auth.Verifier().Verify(c.UserContext(), c.Params("token")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": MessageEmailVerified,
	})
}

func (a *AuthController) ResendVerification(c *fiber.Ctx) error {
	payload := new(ResendVerificationRequest)
	if err := bindPayload(c, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	if err := a.auth.Verifier().Resend(c.UserContext(), payload.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": MessageVerificationResent,
	})
}

func (a *AuthController) RefreshAccessToken(c *fiber.Ctx) error {
	refreshToken := a.cookie.Read(c)
	if refreshToken == "" {
		a.cookie.Clear(c)
		return ErrRefreshTokenMissing
	}

	user, pair, err := a.auth.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		return err
	}

	a.cookie.Set(c, pair.RefreshToken, pair.RefreshExpiresAt)

	return c.JSON(fiber.Map{
		"user":        user,
		"accessToken": pair.AccessToken,
	})
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	a.cookie.Clear(c)
	return c.JSON(true)
}

func (a *AuthController) Profile(c *fiber.Ctx) error {
	uid, ok := authware.UserID(c)
	if !ok {
		return authware.ErrUnauthorized
	}

	user, err := a.auth.Profile(c.UserContext(), uid)
	if err != nil {
		return err
	}

	return c.JSON(user.Profile())
}

func (a *AuthController) ListUsers(c *fiber.Ctx) error {
	records, err := a.auth.Users(c.UserContext())
	if err != nil {
		return err
	}

	out := make([]UserSummary, 0, len(records))
	for _, u := range records {
		out = append(out, u.Summary())
	}

	return c.JSON(out)
}

func bindPayload(c *fiber.Ctx, payload any) error {
	if err := c.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "Invalid request body").
			WithCode(errors.CodeBadRequest)
	}
	return nil
}
