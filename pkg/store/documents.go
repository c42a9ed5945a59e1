package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/errors"
)

// Well-known keys.
const (
	KeyMetadata = "generationMetadata"
	KeyDocument = "documentationResult"
)

// CredentialKey returns the key holding the API key for provider.
func CredentialKey(provider string) string {
	return "apiKey_" + provider
}

// Documents reads and writes the session records of a Store.
type Documents struct {
	store Store
}

// NewDocuments wraps s.
func NewDocuments(s Store) *Documents {
	return &Documents{store: s}
}

// Store returns the underlying store.
func (d *Documents) Store() Store { return d.store }

// Credential returns the API key saved for provider. A missing or blank
// key is ErrNotFound.
func (d *Documents) Credential(ctx context.Context, provider string) (string, error) {
	if provider == "" {
		return "", ErrNotFound
	}
	data, err := d.store.Get(ctx, CredentialKey(provider))
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// SetCredential saves the API key for provider.
func (d *Documents) SetCredential(ctx context.Context, provider, apiKey string) error {
	if err := errors.ValidateProvider(provider); err != nil {
		return err
	}
	if strings.TrimSpace(apiKey) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "API key is empty")
	}
	return d.store.Set(ctx, CredentialKey(provider), []byte(strings.TrimSpace(apiKey)))
}

// DeleteCredential removes the API key for provider.
func (d *Documents) DeleteCredential(ctx context.Context, provider string) error {
	return d.store.Delete(ctx, CredentialKey(provider))
}

// Metadata returns the saved generation metadata. Records without a
// provider count as missing.
func (d *Documents) Metadata(ctx context.Context) (*document.GenerationMetadata, error) {
	var m document.GenerationMetadata
	if err := d.getJSON(ctx, KeyMetadata, &m); err != nil {
		return nil, err
	}
	if m.Provider == "" {
		return nil, ErrNotFound
	}
	return &m, nil
}

// SetMetadata saves the generation metadata.
func (d *Documents) SetMetadata(ctx context.Context, m document.GenerationMetadata) error {
	return d.setJSON(ctx, KeyMetadata, m)
}

// Document returns the current document.
func (d *Documents) Document(ctx context.Context) (*document.Document, error) {
	var doc document.Document
	if err := d.getJSON(ctx, KeyDocument, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveDocument replaces the current document.
func (d *Documents) SaveDocument(ctx context.Context, doc document.Document) error {
	return d.setJSON(ctx, KeyDocument, doc)
}

func (d *Documents) getJSON(ctx context.Context, key string, v any) error {
	data, err := d.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "decode %s", key)
	}
	return nil
}

func (d *Documents) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", key)
	}
	return d.store.Set(ctx, key, data)
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}
