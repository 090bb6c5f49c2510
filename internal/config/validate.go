package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Vault.MasterKey) < 32 {
		return fmt.Errorf("vault.master_key must be at least 32 characters (got %d)", len(c.Vault.MasterKey))
	}

	if len(c.OAuth.StateSecret) < 32 {
		return fmt.Errorf("oauth.state_secret must be at least 32 characters (got %d)", len(c.OAuth.StateSecret))
	}

	if !c.OAuth.HasLinkedIn() && !c.OAuth.HasTwitter() {
		return fmt.Errorf("at least one platform must be configured (LinkedIn or Twitter)")
	}

	if !strings.HasPrefix(c.OAuth.CallbackBaseURL, "http://") && !strings.HasPrefix(c.OAuth.CallbackBaseURL, "https://") {
		return fmt.Errorf("oauth.callback_base_url must be an absolute URL (got %q)", c.OAuth.CallbackBaseURL)
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0 (got %d)", c.LLM.MaxTokens)
	}

	return nil
}
