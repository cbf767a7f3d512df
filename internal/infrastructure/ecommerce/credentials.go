package ecommerce

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/config"
)

// EnvCredentialStore serves store credentials from configuration. Secrets
// are read from the environment on every lookup so that rotated values are
// picked up without a restart.
type EnvCredentialStore struct {
	mu        sync.RWMutex
	stores    map[string]config.StoreConfig
	lookupEnv func(string) (string, bool)
}

var _ integration.CredentialStore = (*EnvCredentialStore)(nil)

// NewEnvCredentialStore creates a store over the configured connections
func NewEnvCredentialStore(stores []config.StoreConfig) *EnvCredentialStore {
	s := &EnvCredentialStore{
		stores:    make(map[string]config.StoreConfig, len(stores)),
		lookupEnv: os.LookupEnv,
	}
	for _, st := range stores {
		s.stores[st.ID] = st
	}
	return s
}

// Put adds or replaces a store connection
func (s *EnvCredentialStore) Put(store config.StoreConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[store.ID] = store
}

// StoreIDs lists the configured store ids for a platform
func (s *EnvCredentialStore) StoreIDs(platform integration.PlatformCode) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, st := range s.stores {
		if st.Platform == platform.String() {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetCredentials implements integration.CredentialStore
func (s *EnvCredentialStore) GetCredentials(_ context.Context, storeID string) (integration.PlatformCredentials, error) {
	s.mu.RLock()
	st, ok := s.stores[storeID]
	s.mu.RUnlock()
	if !ok {
		return integration.PlatformCredentials{}, fmt.Errorf("%w: store %q", integration.ErrCredentialsNotFound, storeID)
	}

	creds := integration.PlatformCredentials{
		Platform:   integration.PlatformCode(st.Platform),
		StoreID:    st.ID,
		BaseURL:    st.BaseURL,
		Username:   st.Username,
		Repository: st.Repository,
		Branch:     st.Branch,
	}
	if st.PasswordEnv != "" {
		v, ok := s.lookupEnv(st.PasswordEnv)
		if !ok {
			return integration.PlatformCredentials{}, fmt.Errorf("%w: %s is not set", integration.ErrCredentialsNotFound, st.PasswordEnv)
		}
		creds.Password = v
	}
	if st.AccessTokenEnv != "" {
		v, ok := s.lookupEnv(st.AccessTokenEnv)
		if !ok {
			return integration.PlatformCredentials{}, fmt.Errorf("%w: %s is not set", integration.ErrCredentialsNotFound, st.AccessTokenEnv)
		}
		creds.AccessToken = v
	}
	return creds, nil
}

// credentialsFor loads credentials and checks they belong to platform
func credentialsFor(ctx context.Context, store integration.CredentialStore, platform integration.PlatformCode, storeID, op string) (integration.PlatformCredentials, error) {
	creds, err := store.GetCredentials(ctx, storeID)
	if err != nil {
		return integration.PlatformCredentials{}, integration.NewAuthExpiredError(op, err)
	}
	if creds.Platform != "" && creds.Platform != platform {
		return integration.PlatformCredentials{}, integration.NewValidationError(op,
			fmt.Errorf("%w: store %q belongs to %s", integration.ErrPlatformNotConfigured, storeID, creds.Platform))
	}
	if creds.BaseURL == "" {
		return integration.PlatformCredentials{}, integration.NewValidationError(op,
			fmt.Errorf("%w: store %q has no base url", integration.ErrPlatformNotConfigured, storeID))
	}
	return creds, nil
}
