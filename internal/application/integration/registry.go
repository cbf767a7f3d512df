package integration

import (
	"fmt"
	"sync"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// PlatformBinding is everything the engine needs to talk to one platform.
// Exactly one of Single or Multi is set, matching the platform's push shape.
type PlatformBinding struct {
	Transformer integration.Transformer
	Single      integration.SingleCallClient
	Multi       integration.MultiStepClient
}

// Platform returns the bound platform code
func (b PlatformBinding) Platform() integration.PlatformCode {
	if b.Transformer == nil {
		return ""
	}
	return b.Transformer.Platform()
}

// Shape returns the push shape the binding implements
func (b PlatformBinding) Shape() integration.PushShape {
	if b.Multi != nil {
		return integration.PushShapeMultiStep
	}
	return integration.PushShapeSingleCall
}

func (b PlatformBinding) validate() error {
	if b.Transformer == nil {
		return fmt.Errorf("%w: transformer required", integration.ErrPlatformNotConfigured)
	}
	code := b.Transformer.Platform()
	if !code.IsValid() {
		return integration.ErrInvalidPlatformCode
	}
	if (b.Single == nil) == (b.Multi == nil) {
		return fmt.Errorf("%w: %s needs exactly one client", integration.ErrPlatformNotConfigured, code)
	}
	if b.Shape() != code.PushShape() {
		return fmt.Errorf("%w: %s is a %s platform", integration.ErrPlatformNotConfigured, code, code.PushShape())
	}
	if b.Single != nil && b.Single.Platform() != code {
		return fmt.Errorf("%w: client for %s bound to %s", integration.ErrPlatformNotConfigured, b.Single.Platform(), code)
	}
	if b.Multi != nil && b.Multi.Platform() != code {
		return fmt.Errorf("%w: client for %s bound to %s", integration.ErrPlatformNotConfigured, b.Multi.Platform(), code)
	}
	return nil
}

// Registry maps platform codes to their bindings
type Registry struct {
	mu       sync.RWMutex
	bindings map[integration.PlatformCode]PlatformBinding
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[integration.PlatformCode]PlatformBinding)}
}

// Register adds or replaces the binding for its platform
func (r *Registry) Register(b PlatformBinding) error {
	if err := b.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.Platform()] = b
	return nil
}

// Get returns the binding for a platform
func (r *Registry) Get(code integration.PlatformCode) (PlatformBinding, error) {
	if !code.IsValid() {
		return PlatformBinding{}, integration.ErrPlatformNotSupported
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[code]
	if !ok {
		return PlatformBinding{}, fmt.Errorf("%w: %s", integration.ErrPlatformNotConfigured, code)
	}
	return b, nil
}

// Platforms lists the registered platform codes in canonical order
func (r *Registry) Platforms() []integration.PlatformCode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]integration.PlatformCode, 0, len(r.bindings))
	for _, code := range integration.AllPlatformCodes {
		if _, ok := r.bindings[code]; ok {
			out = append(out, code)
		}
	}
	return out
}
