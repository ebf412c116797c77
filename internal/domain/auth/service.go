package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/yanqian/fevertrack/pkg/errors"
)

// Service validates tokens issued by the external identity provider.
type Service interface {
	ValidateToken(ctx context.Context, token string) (Session, error)
	IssueToken(ctx context.Context, req IssueRequest) (string, error)
}

type service struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	verifierOnce sync.Once
	verifier     *oidc.IDTokenVerifier
	verifierErr  error
}

type tokenClaims struct {
	Role      string `json:"role"`
	PatientID string `json:"patient_id,omitempty"`
	jwt.RegisteredClaims
}

// NewService constructs a Service instance.
func NewService(cfg Config, logger *slog.Logger) Service {
	return &service{
		cfg:    cfg,
		logger: logger.With("component", "auth.service"),
		now:    time.Now,
	}
}

func (s *service) ValidateToken(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, apperrors.Wrap("invalid_token", "token missing", nil)
	}
	if strings.TrimSpace(s.cfg.OIDCIssuer) != "" {
		return s.verifyOIDC(ctx, token)
	}
	return s.parseToken(token)
}

func (s *service) IssueToken(_ context.Context, req IssueRequest) (string, error) {
	if strings.TrimSpace(s.cfg.Secret) == "" {
		return "", apperrors.Wrap("auth_error", "token secret not configured", nil)
	}
	if strings.TrimSpace(req.Subject) == "" {
		return "", apperrors.Wrap("invalid_input", "subject is required", nil)
	}
	if _, err := parseRole(string(req.Role)); err != nil {
		return "", apperrors.Wrap("invalid_input", err.Error(), nil)
	}
	if req.Role == RolePatient && strings.TrimSpace(req.PatientID) == "" {
		return "", apperrors.Wrap("invalid_input", "patient tokens need a patient id", nil)
	}
	now := s.now()
	claims := tokenClaims{
		Role:      string(req.Role),
		PatientID: req.PatientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Subject,
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap("auth_error", "failed to sign token", err)
	}
	return signed, nil
}

func (s *service) parseToken(token string) (Session, error) {
	if strings.TrimSpace(s.cfg.Secret) == "" {
		return Session{}, apperrors.Wrap("auth_error", "token secret not configured", nil)
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Session{}, apperrors.Wrap("invalid_token", "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Session{}, apperrors.Wrap("invalid_token", "token invalid", nil)
	}
	if claims.ExpiresAt == nil {
		return Session{}, apperrors.Wrap("invalid_token", "token missing expiry", nil)
	}
	return buildSession(claims.Subject, claims.Role, claims.PatientID, claims.ExpiresAt.Time)
}

type oidcClaims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role"`
	PatientID string `json:"patient_id"`
}

func (s *service) verifyOIDC(ctx context.Context, rawToken string) (Session, error) {
	verifier, err := s.oidcVerifier(ctx)
	if err != nil {
		return Session{}, apperrors.Wrap("auth_error", "failed to initialize oidc provider", err)
	}
	idToken, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return Session{}, apperrors.Wrap("invalid_token", "failed to verify id token", err)
	}
	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return Session{}, apperrors.Wrap("invalid_token", "failed to parse id token claims", err)
	}
	return buildSession(claims.Subject, claims.Role, claims.PatientID, idToken.Expiry)
}

func (s *service) oidcVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	s.verifierOnce.Do(func() {
		provider, err := oidc.NewProvider(ctx, s.cfg.OIDCIssuer)
		if err != nil {
			s.verifierErr = err
			return
		}
		s.verifier = provider.Verifier(&oidc.Config{ClientID: s.cfg.OIDCClientID})
		s.logger.Info("oidc verifier ready", "issuer", s.cfg.OIDCIssuer)
	})
	return s.verifier, s.verifierErr
}

func buildSession(subject, role, patientID string, expiresAt time.Time) (Session, error) {
	if strings.TrimSpace(subject) == "" {
		return Session{}, apperrors.Wrap("invalid_token", "token missing subject", nil)
	}
	parsedRole, err := parseRole(role)
	if err != nil {
		return Session{}, apperrors.Wrap("invalid_token", "token carries an unknown role", err)
	}
	if parsedRole == RolePatient && strings.TrimSpace(patientID) == "" {
		return Session{}, apperrors.Wrap("invalid_token", "patient token missing patient id", nil)
	}
	return Session{
		Subject:   subject,
		Role:      parsedRole,
		PatientID: patientID,
		ExpiresAt: expiresAt,
	}, nil
}

func parseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RolePatient:
		return RolePatient, nil
	case RoleClinician:
		return RoleClinician, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

func newTokenID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}
