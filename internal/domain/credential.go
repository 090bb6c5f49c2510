package domain

import "github.com/google/uuid"

// LLMCredential is a user's single active LLM identity: which vendor to
// call, with which model, using which (encrypted) API key.
//
// All three fields are set together by configuration and cleared together
// by revocation. A record with only some of them set is invalid.
type LLMCredential struct {
	UserID          uuid.UUID
	Provider        *LLMProvider
	Model           *string
	EncryptedAPIKey *string
}

// IsConfigured reports whether the credential can be used for generation.
func (c *LLMCredential) IsConfigured() bool {
	return c != nil && c.Provider != nil && c.EncryptedAPIKey != nil && *c.EncryptedAPIKey != ""
}

// ModelOrDefault returns the configured model, or fallback when unset.
func (c *LLMCredential) ModelOrDefault(fallback string) string {
	if c.Model != nil && *c.Model != "" {
		return *c.Model
	}
	return fallback
}
