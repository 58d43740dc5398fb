package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/literacy-games/internal/auth/jwt"
)

var (
	ErrDisplayNameLength = errors.New("display name must be 2-24 characters")
	ErrDisplayNameChars  = errors.New("display name contains unsupported characters")
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// GuestRequest creates an ephemeral player identity.
type GuestRequest struct {
	DisplayName string `json:"display_name"`
}

// Service issues and validates player identities. Players are guests only;
// progress is keyed by the player id embedded in the token.
type Service struct {
	tokenMgr *jwt.Manager
	logger   zerolog.Logger
}

// NewService creates an authentication service.
func NewService(cfg jwt.TokenConfig, logger zerolog.Logger) *Service {
	return &Service{
		tokenMgr: jwt.NewManager(cfg),
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// CreateGuest issues tokens for a new guest player.
func (s *Service) CreateGuest(req GuestRequest) (jwt.Player, *TokenPair, error) {
	name, err := normalizeDisplayName(req.DisplayName)
	if err != nil {
		return jwt.Player{}, nil, err
	}

	player := jwt.Player{ID: uuid.New(), DisplayName: name, IsGuest: true}
	tokens, err := s.generateTokenPair(player)
	if err != nil {
		return jwt.Player{}, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("player_id", player.ID.String()).Msg("guest created")
	return player, tokens, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenMgr.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(jwt.Player{
		ID:          claims.PlayerID,
		DisplayName: claims.DisplayName,
		IsGuest:     claims.IsGuest,
	})
}

// ValidateToken checks an access token.
func (s *Service) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.tokenMgr.ValidateAccessToken(tokenString)
}

func (s *Service) generateTokenPair(p jwt.Player) (*TokenPair, error) {
	access, err := s.tokenMgr.GenerateAccessToken(p)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokenMgr.GenerateRefreshToken(p)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokenMgr.AccessTTL().Seconds()),
	}, nil
}

func normalizeDisplayName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if n := utf8.RuneCountInString(name); n < 2 || n > 24 {
		return "", ErrDisplayNameLength
	}
	for _, r := range name {
		if r == '<' || r == '>' || r == '&' || r < 0x20 {
			return "", ErrDisplayNameChars
		}
	}
	return name, nil
}
