package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/mixelka/massmailer/pkg/models"
)

const stateCookieName = "oauth_state"

// handleVerifyGmail starts the Google consent flow for connecting a sender
// mailbox
func (s *Server) handleVerifyGmail(w http.ResponseWriter, r *http.Request) {
	state := s.issueState(w)
	url := s.googleOAuth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	http.Redirect(w, r, url, http.StatusFound)
}

// handleGmailCallback completes the Google exchange and stores the resulting
// credential. The verified address comes from the userinfo endpoint.
func (s *Server) handleGmailCallback(w http.ResponseWriter, r *http.Request) {
	if !s.checkState(r) {
		s.respondError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.respondError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := s.googleOAuth.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("google code exchange failed", "error", err)
		s.respondError(w, http.StatusBadRequest, "failed to obtain token")
		return
	}

	email, err := s.fetchGoogleEmail(r, token)
	if err != nil {
		s.logger.Error("failed to fetch google userinfo", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch user info")
		return
	}

	cred := &models.Credential{
		Email:        email,
		Provider:     models.ProviderGmail,
		Status:       models.StatusEnabled,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     s.googleOAuth.Endpoint.TokenURL,
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		Scopes:       strings.Join(s.cfg.GoogleScopes, ","),
		TokenExpiry:  token.Expiry,
	}
	if err := s.db.UpsertCredential(r.Context(), cred); err != nil {
		s.logger.Error("failed to store gmail credential", "email", email, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	s.logger.Info("gmail mailbox verified", "email", email)
	http.Redirect(w, r, s.cfg.FrontendURL+"/?page=send_mass_mail", http.StatusFound)
}

// handleVerifyOutlook starts the Microsoft consent flow
func (s *Server) handleVerifyOutlook(w http.ResponseWriter, r *http.Request) {
	state := s.issueState(w)
	http.Redirect(w, r, s.outlookOAuth.AuthCodeURL(state), http.StatusFound)
}

// handleOutlookCallback completes the Microsoft exchange; the verified
// address is the Graph userPrincipalName
func (s *Server) handleOutlookCallback(w http.ResponseWriter, r *http.Request) {
	if !s.checkState(r) {
		s.respondError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.respondError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := s.outlookOAuth.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("outlook code exchange failed", "error", err)
		s.respondError(w, http.StatusBadRequest, "failed to obtain token")
		return
	}

	email, err := s.fetchOutlookEmail(r, token)
	if err != nil {
		s.logger.Error("failed to fetch graph user", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch user info")
		return
	}

	// Keep the scopes the provider actually granted; they are requested
	// again on every refresh
	scopes := strings.Join(s.cfg.OutlookScopes, ",")
	if granted, ok := token.Extra("scope").(string); ok && granted != "" {
		scopes = strings.Join(strings.Fields(granted), ",")
	}

	cred := &models.Credential{
		Email:        email,
		Provider:     models.ProviderOutlook,
		Status:       models.StatusEnabled,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     s.outlookOAuth.Endpoint.TokenURL,
		ClientID:     s.cfg.OutlookClientID,
		ClientSecret: s.cfg.OutlookClientSecret,
		Scopes:       scopes,
		TokenExpiry:  token.Expiry,
	}
	if err := s.db.UpsertCredential(r.Context(), cred); err != nil {
		s.logger.Error("failed to store outlook credential", "email", email, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	s.logger.Info("outlook mailbox verified", "email", email)
	http.Redirect(w, r, s.cfg.FrontendURL+"/?page=send_mass_mail", http.StatusFound)
}

// issueState generates a CSRF state value and pins it in a short-lived cookie
func (s *Server) issueState(w http.ResponseWriter) string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	state := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
	})
	return state
}

func (s *Server) checkState(r *http.Request) bool {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return false
	}
	return cookie.Value != "" && cookie.Value == r.URL.Query().Get("state")
}

func (s *Server) fetchGoogleEmail(r *http.Request, token *oauth2.Token) (string, error) {
	client := s.googleOAuth.Client(r.Context(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return "", fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Email == "" {
		return "", fmt.Errorf("no email in userinfo response")
	}
	return info.Email, nil
}

func (s *Server) fetchOutlookEmail(r *http.Request, token *oauth2.Token) (string, error) {
	client := s.outlookOAuth.Client(r.Context(), token)
	resp, err := client.Get("https://graph.microsoft.com/v1.0/me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch graph user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("graph user request failed with status %d", resp.StatusCode)
	}

	var info struct {
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode graph user: %w", err)
	}
	if info.UserPrincipalName == "" {
		return "", fmt.Errorf("no userPrincipalName in graph response")
	}
	return info.UserPrincipalName, nil
}
