package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/ebookshelf/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 24 * time.Hour

// bcrypt only accepts passwords up to this many bytes.
const maxPasswordBytes = 72

// AuthService handles signup, login, and session token operations.
type AuthService struct {
	users      domain.UserRepository
	jwtSecret  []byte
	bcryptCost int
	validate   *validator.Validate
	now        func() time.Time
	dummyHash  []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(users domain.UserRepository, jwtSecret string, bcryptCost int) *AuthService {
	// compared against when the identifier is unknown, so both paths cost a bcrypt round
	dummy, _ := bcrypt.GenerateFromPassword([]byte("no-such-user"), bcryptCost)
	return &AuthService{
		users:      users,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: bcryptCost,
		validate:   validator.New(),
		now:        time.Now,
		dummyHash:  dummy,
	}
}

type signupInput struct {
	Email    string `validate:"required,email,max=254"`
	Username string `validate:"required,max=64"`
	Password string `validate:"required,min=8,max=72"`
}

// Signup creates a new account after validating inputs.
func (s *AuthService) Signup(ctx context.Context, email, username, password string) (*domain.User, error) {
	in := signupInput{
		Email:    strings.TrimSpace(email),
		Username: strings.TrimSpace(username),
		Password: password,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks identifier (email or username) and password.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	user, err := s.users.FindByLogin(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Login verifies credentials and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (string, *domain.User, error) {
	user, err := s.Authenticate(ctx, identifier, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.generateJWT(user)
	if err != nil {
		return "", nil, fmt.Errorf("generate jwt: %w", err)
	}
	return token, user, nil
}

// ValidateToken parses and validates a session token and returns the
// identity it carries.
func (s *AuthService) ValidateToken(tokenString string) (domain.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	username, _ := claims["username"].(string)

	return domain.Identity{Email: sub, Username: username}, nil
}

// Resolve turns a session token into an identity whose account still exists.
func (s *AuthService) Resolve(ctx context.Context, tokenString string) (domain.Identity, error) {
	id, err := s.ValidateToken(tokenString)
	if err != nil {
		return domain.Identity{}, err
	}
	user, err := s.users.GetByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, domain.ErrUnauthorized
		}
		return domain.Identity{}, fmt.Errorf("get user: %w", err)
	}
	return domain.Identity{Email: user.Email, Username: user.Username}, nil
}

func (s *AuthService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      user.Email,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(sessionTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	e := verrs[0]
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "email address is not valid"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		return field + " is not valid"
	}
}
