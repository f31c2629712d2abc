package api

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type Lockfile struct {
	Name     string
	PID      string
	Port     string
	Password string
	Protocol string
}

// DefaultLockfilePath is where the Riot client writes its lockfile on Windows.
func DefaultLockfilePath() string {
	return filepath.Join(os.Getenv("LOCALAPPDATA"), "Riot Games", "Riot Client", "Config", "lockfile")
}

// ReadLockfile parses "name:pid:port:password:protocol".
func ReadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoLockfile
		}
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	return ParseLockfile(string(data))
}

func ParseLockfile(content string) (*Lockfile, error) {
	parts := strings.Split(strings.TrimSpace(content), ":")
	if len(parts) != 5 {
		return nil, fmt.Errorf("malformed lockfile: expected 5 fields, got %d", len(parts))
	}
	return &Lockfile{
		Name:     parts[0],
		PID:      parts[1],
		Port:     parts[2],
		Password: parts[3],
		Protocol: parts[4],
	}, nil
}

func basicAuth(password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:"+password))
}

// LocalClient talks to the Riot client's loopback HTTPS API, which serves a
// self-signed certificate.
type LocalClient struct {
	baseURL  string
	password string
	client   *fasthttp.Client
	logger   zerolog.Logger
}

func NewLocalClient(lock *Lockfile, logger zerolog.Logger) *LocalClient {
	return NewLocalClientURL(fmt.Sprintf("https://127.0.0.1:%s", lock.Port), lock.Password, logger)
}

func NewLocalClientURL(baseURL, password string, logger zerolog.Logger) *LocalClient {
	return &LocalClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		password: password,
		client: &fasthttp.Client{
			TLSConfig:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // loopback self-signed cert
			ReadTimeout:  constants.LocalAPITimeout,
			WriteTimeout: constants.LocalAPITimeout,
		},
		logger: logger.With().Str("component", "local").Logger(),
	}
}

func (c *LocalClient) Entitlements(ctx context.Context) (*EntitlementsResponse, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/entitlements/v1/token")
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", basicAuth(c.password))

	if err := do(ctx, c.client, req, resp); err != nil {
		return nil, fmt.Errorf("failed to call entitlements: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: entitlements returned %d", resp.StatusCode())
	}
	ent, err := decode[EntitlementsResponse](resp.Body())
	if err != nil {
		return nil, err
	}
	if ent.AccessToken == "" || ent.Token == "" || ent.Subject == "" {
		return nil, fmt.Errorf("entitlements response is missing tokens")
	}
	return ent, nil
}

type SessionOptions struct {
	LockfilePath string
	Region       string
	Shard        string
}

// BuildSession assembles the immutable session from the lockfile, the local
// entitlements endpoint and the published client version.
func BuildSession(ctx context.Context, opts SessionOptions, content *ContentClient, logger zerolog.Logger) (*domain.SessionContext, error) {
	path := opts.LockfilePath
	if path == "" {
		path = DefaultLockfilePath()
	}
	lock, err := ReadLockfile(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	ent, err := NewLocalClient(lock, logger).Entitlements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlements: %w", err)
	}

	version, err := content.ClientVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get client version: %w", err)
	}

	session := &domain.SessionContext{
		Puuid:            ent.Subject,
		AccessToken:      ent.AccessToken,
		EntitlementToken: ent.Token,
		ClientVersion:    version,
		ClientPlatform:   DefaultClientPlatform,
		Region:           opts.Region,
		Shard:            opts.Shard,
		LocalPort:        lock.Port,
		LocalPassword:    lock.Password,
	}
	logger.Info().
		Str("puuid", session.Puuid).
		Str("region", session.Region).
		Str("shard", session.Shard).
		Str("client_version", version).
		Time("built_at", time.Now()).
		Msg("session established")
	return session, nil
}
