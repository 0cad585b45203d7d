// Package secrets resolves credential references. A reference of the form
// projects/<p>/secrets/<name>[/versions/<v>] is read from Secret Manager;
// anything else is used literally.
package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	secretmanager "google.golang.org/api/secretmanager/v1"
)

// Accessor reads the payload of one secret version.
type Accessor interface {
	Access(ctx context.Context, version string) (string, error)
}

// IsReference reports whether ref names a Secret Manager secret.
func IsReference(ref string) bool {
	return strings.HasPrefix(ref, "projects/") && strings.Contains(ref, "/secrets/")
}

// versionName appends /versions/latest unless ref already pins a version.
func versionName(ref string) string {
	if strings.Contains(ref, "/versions/") {
		return ref
	}
	return ref + "/versions/latest"
}

// Resolver turns references into secret values.
type Resolver struct {
	accessor Accessor
}

// NewResolver creates a Resolver. accessor may be nil when no reference is
// expected; resolving one then fails.
func NewResolver(accessor Accessor) *Resolver {
	return &Resolver{accessor: accessor}
}

// Resolve returns the secret value for ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	if !IsReference(ref) {
		return ref, nil
	}
	if r.accessor == nil {
		return "", fmt.Errorf("secret %s: no secret manager configured", ref)
	}
	v, err := r.accessor.Access(ctx, versionName(ref))
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", ref, err)
	}
	return v, nil
}

// SecretManager reads secrets through the Secret Manager REST API. The
// client is created on first use with application default credentials
// unless options say otherwise.
type SecretManager struct {
	opts []option.ClientOption

	once sync.Once
	svc  *secretmanager.Service
	err  error
}

// NewSecretManager creates a lazily connected Secret Manager accessor.
func NewSecretManager(opts ...option.ClientOption) *SecretManager {
	return &SecretManager{opts: opts}
}

// Access returns the decoded payload of version.
func (m *SecretManager) Access(ctx context.Context, version string) (string, error) {
	m.once.Do(func() {
		m.svc, m.err = secretmanager.NewService(ctx, m.opts...)
	})
	if m.err != nil {
		return "", fmt.Errorf("create secret manager client: %w", m.err)
	}

	resp, err := m.svc.Projects.Secrets.Versions.Access(version).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Payload == nil {
		return "", fmt.Errorf("secret version %s has no payload", version)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", fmt.Errorf("decode payload of %s: %w", version, err)
	}
	return string(data), nil
}
