package moderation

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// ErrAlreadyModerated is returned when registering over an existing policy
	ErrAlreadyModerated = errors.New("content type is already moderated")
	// ErrNotModerated is returned when unregistering a content type without a policy
	ErrNotModerated = errors.New("content type is not moderated")
)

// Registry maps content types to policies. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Register adds a policy. Re-registering requires Unregister or Replace.
func (r *Registry) Register(contentType string, p Policy) error {
	if contentType == "" || p == nil {
		return fmt.Errorf("content type and policy are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.policies[contentType]; ok {
		return fmt.Errorf("%s: %w", contentType, ErrAlreadyModerated)
	}
	r.policies[contentType] = p
	return nil
}

// Replace installs p for contentType whether or not one exists and reports
// whether a previous policy was replaced
func (r *Registry) Replace(contentType string, p Policy) (bool, error) {
	if contentType == "" || p == nil {
		return false, fmt.Errorf("content type and policy are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.policies[contentType]
	r.policies[contentType] = p
	return existed, nil
}

// Unregister removes the policy for contentType
func (r *Registry) Unregister(contentType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.policies[contentType]; !ok {
		return fmt.Errorf("%s: %w", contentType, ErrNotModerated)
	}
	delete(r.policies, contentType)
	return nil
}

// Lookup returns the policy for contentType
func (r *Registry) Lookup(contentType string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[contentType]
	return p, ok
}

// ContentTypes lists moderated content types in sorted order
func (r *Registry) ContentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.policies))
	for ct := range r.policies {
		types = append(types, ct)
	}
	sort.Strings(types)
	return types
}

// policyFile is the YAML layout of a moderation policy file:
//
//	moderators:
//	  topic:
//	    enable_field: enable_comments
//	    auto_close_field: published_at
//	    close_after: 15
//	    allowed_markup: [markdown, plaintext]
type policyFile struct {
	Moderators map[string]*Moderator `yaml:"moderators"`
}

// LoadFile reads a YAML policy file and registers every moderator in it
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read policy file: %w", err)
	}
	return r.Load(data)
}

// Load registers every moderator in a YAML document
func (r *Registry) Load(data []byte) (int, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse policy file: %w", err)
	}

	types := make([]string, 0, len(file.Moderators))
	for ct := range file.Moderators {
		types = append(types, ct)
	}
	sort.Strings(types)

	for _, ct := range types {
		if file.Moderators[ct] == nil {
			file.Moderators[ct] = &Moderator{}
		}
		if err := file.Moderators[ct].Validate(); err != nil {
			return 0, fmt.Errorf("moderator %s: %w", ct, err)
		}
	}

	registered := 0
	for _, ct := range types {
		if err := r.Register(ct, file.Moderators[ct]); err != nil {
			return registered, err
		}
		registered++
	}
	return registered, nil
}
