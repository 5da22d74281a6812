package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	firebasesdk "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/eleven-am/civic311/internal/auth"
	"github.com/eleven-am/civic311/internal/user"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

var credentialScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/firebase",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

var ErrPasswordCheckUnavailable = errors.New("password verification requires FIREBASE_API_KEY")

type Config struct {
	CredentialsFile    string
	ProjectID          string
	APIKey             string
	IdentityToolkitURL string
	Timeout            time.Duration
}

// authClient is the subset of the Admin SDK auth client in use.
type authClient interface {
	CreateUser(ctx context.Context, user *fbauth.UserToCreate) (*fbauth.UserRecord, error)
	GetUser(ctx context.Context, uid string) (*fbauth.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*fbauth.UserRecord, error)
	CustomToken(ctx context.Context, uid string) (string, error)
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Provider delegates account management and token handling to Firebase
// Authentication.
type Provider struct {
	client     authClient
	httpClient *http.Client
	apiKey     string
	toolkitURL string
}

func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read firebase credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, credentialScopes...)
		if err != nil {
			return nil, fmt.Errorf("parse firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	var appCfg *firebasesdk.Config
	if cfg.ProjectID != "" {
		appCfg = &firebasesdk.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebasesdk.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}

	return newProvider(client, cfg), nil
}

func newProvider(client authClient, cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	toolkitURL := cfg.IdentityToolkitURL
	if toolkitURL == "" {
		toolkitURL = defaultIdentityToolkitURL
	}

	return &Provider{
		client:     client,
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		toolkitURL: strings.TrimRight(toolkitURL, "/"),
	}
}

func (p *Provider) Name() string {
	return "firebase"
}

func toRecord(rec *fbauth.UserRecord) *user.Record {
	out := &user.Record{EmailVerified: rec.EmailVerified}
	if rec.UserInfo != nil {
		out.UID = rec.UID
		out.Email = rec.Email
		out.DisplayName = rec.DisplayName
	}
	return out
}

func (p *Provider) CreateUser(ctx context.Context, nu user.NewUser) (*user.Record, error) {
	params := (&fbauth.UserToCreate{}).
		Email(nu.Email).
		Password(nu.Password).
		EmailVerified(false)
	if nu.DisplayName != "" {
		params = params.DisplayName(nu.DisplayName)
	}

	rec, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, user.ErrEmailExists
		}
		return nil, fmt.Errorf("firebase create user: %w", err)
	}
	return toRecord(rec), nil
}

func (p *Provider) GetUserByEmail(ctx context.Context, email string) (*user.Record, error) {
	rec, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("firebase get user: %w", err)
	}
	return toRecord(rec), nil
}

func (p *Provider) CustomToken(ctx context.Context, rec *user.Record) (string, error) {
	token, err := p.client.CustomToken(ctx, rec.UID)
	if err != nil {
		return "", fmt.Errorf("firebase custom token: %w", err)
	}
	return token, nil
}

func (p *Provider) VerifyToken(ctx context.Context, token string) (*auth.Claims, error) {
	tok, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	claims := &auth.Claims{UID: tok.UID}
	claims.Subject = tok.UID
	if email, ok := tok.Claims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		claims.Name = name
	}
	return claims, nil
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID string `json:"localId"`
}

type toolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var invalidCredentialCodes = map[string]struct{}{
	"EMAIL_NOT_FOUND":           {},
	"INVALID_PASSWORD":          {},
	"INVALID_LOGIN_CREDENTIALS": {},
	"USER_DISABLED":             {},
	"INVALID_EMAIL":             {},
}

// VerifyPassword checks credentials against the identity toolkit
// signInWithPassword endpoint; the Admin SDK has no password check.
func (p *Provider) VerifyPassword(ctx context.Context, email, password string) (*user.Record, error) {
	if p.apiKey == "" {
		return nil, ErrPasswordCheckUnavailable
	}

	body, err := json.Marshal(signInRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.toolkitURL + "/accounts:signInWithPassword?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity toolkit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var tkErr toolkitError
		if err := json.NewDecoder(resp.Body).Decode(&tkErr); err == nil {
			code := tkErr.Error.Message
			if i := strings.Index(code, " "); i > 0 {
				code = code[:i]
			}
			if _, ok := invalidCredentialCodes[code]; ok {
				return nil, user.ErrInvalidCredentials
			}
		}
		return nil, fmt.Errorf("identity toolkit returned status %d", resp.StatusCode)
	}

	var signIn signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&signIn); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if signIn.LocalID == "" {
		return nil, errors.New("identity toolkit response missing localId")
	}

	rec, err := p.client.GetUser(ctx, signIn.LocalID)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("firebase get user: %w", err)
	}
	return toRecord(rec), nil
}
