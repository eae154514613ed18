// README: User service: registration, credential checks, token issue/verify.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"sharetray/internal/types"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const bcryptCost = 12

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id types.ID) (*User, error)
	GetByName(ctx context.Context, name string) (*User, error)
	UpdateLocation(ctx context.Context, id types.ID, loc types.Point) error
	ListByRole(ctx context.Context, role types.Role) ([]*User, error)
}

type Service struct {
	store    Repository
	secret   []byte
	tokenTTL time.Duration
}

func NewService(store Repository, secret string, tokenTTL time.Duration) *Service {
	return &Service{store: store, secret: []byte(secret), tokenTTL: tokenTTL}
}

type RegisterCommand struct {
	Name     string
	Role     types.Role
	Password string
	Phone    *string
	Location *types.Point
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	if cmd.Name == "" || cmd.Password == "" {
		return nil, fmt.Errorf("%w: name and password are required", ErrBadRequest)
	}
	if !types.ValidRole(cmd.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrBadRequest, cmd.Role)
	}
	if existing, err := s.store.GetByName(ctx, cmd.Name); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: name %q taken", ErrConflict, cmd.Name)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           types.NewID(),
		Name:         cmd.Name,
		Role:         cmd.Role,
		Phone:        cmd.Phone,
		Location:     cmd.Location,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the password and returns the user plus a signed access token.
func (s *Service) Login(ctx context.Context, name, password string) (*User, string, error) {
	u, err := s.store.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) IssueToken(u *User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  string(u.ID),
		"name": u.Name,
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := mapClaims["sub"].(string)
	name, _ := mapClaims["name"].(string)
	role, _ := mapClaims["role"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	return &Claims{UserID: types.ID(sub), Name: name, Role: types.Role(role)}, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*User, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByName(ctx context.Context, name string) (*User, error) {
	return s.store.GetByName(ctx, name)
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, loc types.Point) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.UpdateLocation(ctx, id, loc)
}

func (s *Service) ListByRole(ctx context.Context, role types.Role) ([]*User, error) {
	return s.store.ListByRole(ctx, role)
}

// ResolveRole looks up the role for an actor id. A missing user resolves to
// nil rather than an error so audit writers can record entries for actors
// that no longer exist.
func (s *Service) ResolveRole(ctx context.Context, id types.ID) (*types.Role, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	role := u.Role
	return &role, nil
}
