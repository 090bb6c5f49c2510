package domain

// Platform identifies a social network the product can publish to.
type Platform string

const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformTwitter  Platform = "twitter"
)

// AllPlatforms lists every supported platform in stable order.
var AllPlatforms = []Platform{PlatformLinkedIn, PlatformTwitter}

// IsValid reports whether p is a known platform.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformLinkedIn, PlatformTwitter:
		return true
	}
	return false
}

// LLMProvider identifies an upstream text-generation vendor.
type LLMProvider string

const (
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderGemini    LLMProvider = "gemini"
)

// IsValid reports whether p is a known LLM provider.
func (p LLMProvider) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return true
	}
	return false
}

// PlatformLimits describes per-platform posting constraints.
type PlatformLimits struct {
	CharacterLimit int
	MediaLimit     int
	VideoSizeLimit int64
	ImageSizeLimit int64
	Formats        []string
}

var platformLimits = map[Platform]PlatformLimits{
	PlatformLinkedIn: {
		CharacterLimit: 3000,
		MediaLimit:     9,
		VideoSizeLimit: 5 << 30,  // 5GB
		ImageSizeLimit: 10 << 20, // 10MB
		Formats:        []string{"jpg", "jpeg", "png", "gif", "mp4"},
	},
	PlatformTwitter: {
		CharacterLimit: 280,
		MediaLimit:     4,
		VideoSizeLimit: 512 << 20, // 512MB
		ImageSizeLimit: 5 << 20,   // 5MB
		Formats:        []string{"jpg", "jpeg", "png", "gif", "mp4", "mov"},
	},
}

// Limits returns the posting constraints for the platform.
// Unknown platforms return the zero value.
func (p Platform) Limits() PlatformLimits {
	return platformLimits[p]
}
