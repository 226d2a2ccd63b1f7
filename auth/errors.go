package auth

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidVerificationToken = "verification_token_invalid"
	TextCodeEmailAlreadyVerified     = "verification_already_verified"
	TextCodeVerificationExpired      = "verification_token_expired"
	TextCodeUserNotFound             = "verification_user_not_found"
	TextCodeCooldownActive           = "verification_cooldown_active"
	TextCodeAttemptsExceeded         = "verification_attempts_exceeded"
	TextCodeInvalidCredentials       = "auth_invalid_credentials"
	TextCodeEmailNotVerified         = "auth_email_not_verified"
	TextCodeUserAlreadyExists        = "auth_user_exists"
	TextCodeTokenExpired             = "auth_token_expired"
	TextCodeTokenMalformed           = "auth_token_malformed"
	TextCodeRefreshTokenMissing      = "auth_refresh_token_missing"
	TextCodeRefreshTokenInvalid      = "auth_refresh_token_invalid"
	TextCodeEmptyPassword            = "auth_empty_password"
)

// Localized messages returned verbatim to clients.
const (
	MessageRegistered         = "Регистрация успешна. Пожалуйста, проверьте ваш email для подтверждения аккаунта."
	MessageEmailVerified      = "Email успешно подтвержден"
	MessageVerificationResent = "Письмо с подтверждением отправлено повторно"
)

// ErrInvalidVerificationToken is returned when no pending verification
// matches the token.
var ErrInvalidVerificationToken = errors.New("Неверный или истекший токен подтверждения", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidVerificationToken).
	WithCode(errors.CodeBadRequest)

// ErrEmailAlreadyVerified is returned when the account is already verified.
var ErrEmailAlreadyVerified = errors.New("Email уже подтвержден", errors.CategoryBadInput).
	WithTextCode(TextCodeEmailAlreadyVerified).
	WithCode(errors.CodeBadRequest)

// ErrVerificationExpired is returned when the pending token is past its expiry.
var ErrVerificationExpired = errors.New("Срок действия ссылки истек", errors.CategoryBadInput).
	WithTextCode(TextCodeVerificationExpired).
	WithCode(errors.CodeBadRequest)

// ErrUserNotFound is returned by resend when the email is unknown.
var ErrUserNotFound = errors.New("Пользователь с таким email не найден", errors.CategoryBadInput).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeBadRequest)

// ErrCooldownActive is the base for resend cooldown errors, see NewCooldownError.
var ErrCooldownActive = errors.New("verification resend cooldown active", errors.CategoryBadInput).
	WithTextCode(TextCodeCooldownActive).
	WithCode(errors.CodeBadRequest)

// ErrAttemptsExceeded is the base for attempt limit errors, see NewAttemptsExceededError.
var ErrAttemptsExceeded = errors.New("verification attempts exceeded", errors.CategoryBadInput).
	WithTextCode(TextCodeAttemptsExceeded).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("Email or password invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrEmailNotVerified blocks login until the email is confirmed.
var ErrEmailNotVerified = errors.New("Пожалуйста, подтвердите ваш email перед входом", errors.CategoryAuthz).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrRefreshEmailNotVerified blocks token refresh for unverified accounts.
var ErrRefreshEmailNotVerified = errors.New("Пожалуйста, подтвердите ваш email", errors.CategoryAuthz).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrUserAlreadyExists is returned on duplicate registration. Conflicts
// are reported as 400.
var ErrUserAlreadyExists = errors.New("User already exists", errors.CategoryConflict).
	WithTextCode(TextCodeUserAlreadyExists).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned when a session token is past its expiry.
var ErrTokenExpired = errors.New("token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for any other session token failure.
var ErrTokenMalformed = errors.New("token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshTokenMissing is returned when the refresh cookie is absent.
var ErrRefreshTokenMissing = errors.New("Refresh token not passed", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenMissing).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshTokenInvalid is returned when the refresh cookie fails validation.
var ErrRefreshTokenInvalid = errors.New("Invalid refresh token", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshUserNotFound is returned when the refresh token owner is gone.
var ErrRefreshUserNotFound = errors.New("User not found", errors.CategoryAuth).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// NewCooldownError reports the whole seconds left before a resend is allowed.
func NewCooldownError(seconds int) *errors.Error {
	clone := ErrCooldownActive.Clone()
	clone.Message = fmt.Sprintf("Пожалуйста, подождите %d секунд перед повторной отправкой", seconds)
	return clone.WithMetadata(map[string]any{
		"retry_after_seconds": seconds,
	})
}

// NewAttemptsExceededError reports the configured attempt limit.
func NewAttemptsExceededError(max int) *errors.Error {
	clone := ErrAttemptsExceeded.Clone()
	clone.Message = fmt.Sprintf("Превышено максимальное количество попыток (%d). Пожалуйста, обратитесь в поддержку.", max)
	return clone.WithMetadata(map[string]any{
		"max_attempts": max,
	})
}

// HasTextCode reports whether err is a rich error carrying code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// RetryAfter extracts the cooldown seconds from a cooldown error.
func RetryAfter(err error) (int, bool) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr.TextCode != TextCodeCooldownActive {
		return 0, false
	}
	seconds, ok := richErr.Metadata["retry_after_seconds"].(int)
	return seconds, ok
}
