// Package secrets provides the credential capability the crawler and agent
// authenticate through. Absent credentials fail closed: the caller gets a
// configuration error and must not retry.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrCredentialNotFound indicates a required credential is not configured.
var ErrCredentialNotFound = errors.New("credential not found")

// Well-known credential names.
const (
	GitHubToken  = "github-token"
	OpenAIAPIKey = "openai-api-key"
)

// Provider retrieves named secrets.
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// EnvProvider resolves credentials from environment variables, caching each
// lookup for the life of the process. "github-token" maps to GITHUB_TOKEN.
type EnvProvider struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewEnvProvider creates an environment-backed provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{cache: make(map[string]string)}
}

// Get resolves a credential, returning ErrCredentialNotFound when the
// corresponding environment variable is unset or empty.
func (p *EnvProvider) Get(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.cache[name]; ok {
		return v, nil
	}

	envName := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	v := os.Getenv(envName)
	if v == "" {
		return "", fmt.Errorf("%w: %s (env %s)", ErrCredentialNotFound, name, envName)
	}
	p.cache[name] = v
	return v, nil
}
