package auth

import (
	"time"

	"golang.org/x/oauth2"

	"trainlog/internal/store"
)

const (
	// Strava OAuth endpoints
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scopes required to read private activities (Strava uses comma-separated scopes)
var Scopes = []string{
	"read,activity:read_all",
}

// Config holds the OAuth client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "http://localhost:8089/callback"

	// Endpoint overrides Strava's endpoints when set
	Endpoint *oauth2.Endpoint
}

// NewOAuthConfig creates an oauth2.Config from our Config
func NewOAuthConfig(cfg Config) *oauth2.Config {
	endpoint := oauth2.Endpoint{
		AuthURL:   AuthURL,
		TokenURL:  TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       Scopes,
	}
}

// AuthResult contains the token and athlete info from successful auth
type AuthResult struct {
	Token       *oauth2.Token
	AthleteID   int64
	AthleteName string
}

// StoreAuth converts the result into the stored credential record
func (r *AuthResult) StoreAuth() *store.Auth {
	return &store.Auth{
		AthleteID:    r.AthleteID,
		AccessToken:  r.Token.AccessToken,
		RefreshToken: r.Token.RefreshToken,
		ExpiresAt:    r.Token.Expiry,
	}
}

// ExtractAthlete reads the athlete Strava includes in the token response
func ExtractAthlete(token *oauth2.Token) (id int64, name string) {
	athlete, ok := token.Extra("athlete").(map[string]any)
	if !ok {
		return 0, ""
	}
	if v, ok := athlete["id"].(float64); ok {
		id = int64(v)
	}
	first, _ := athlete["firstname"].(string)
	last, _ := athlete["lastname"].(string)
	switch {
	case first != "" && last != "":
		name = first + " " + last
	default:
		name = first + last
	}
	return id, name
}

// tokenFromAuth converts stored credentials into an oauth2 token
func tokenFromAuth(a *store.Auth) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       a.ExpiresAt,
	}
}

// refreshBuffer is how long before expiry a token is treated as stale
const refreshBuffer = 60 * time.Second
