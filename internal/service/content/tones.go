package content

import (
	"fmt"
	"strings"

	"github.com/crosspost/crosspost-backend/internal/domain"
)

// tonePresets is the fixed per-platform tone table. Order matters: the
// generated variations come back in exactly this order.
var tonePresets = map[domain.Platform][]string{
	domain.PlatformLinkedIn: {
		"Professional & Informative",
		"Thought Leadership",
		"Engaging & Conversational",
	},
	domain.PlatformTwitter: {
		"Casual & Fun",
		"Direct & Informative",
		"Engaging Question",
	},
}

// platformGuidelines is static prompt material, never user input.
var platformGuidelines = map[domain.Platform]string{
	domain.PlatformLinkedIn: strings.TrimSpace(`
- Professional tone, industry insights
- Character limit: 3000
- Best practices: Use relevant hashtags (3-5), mention industry leaders, include a call-to-action
- Format: Well-structured paragraphs with clear spacing`),
	domain.PlatformTwitter: strings.TrimSpace(`
- Concise, engaging, conversational
- Character limit: 280 (or thread if needed)
- Best practices: Use 1-2 hashtags, include mentions, emojis for engagement
- Format: Short, punchy sentences or thread format`),
}

func variationPrompt(sourceText string, platform domain.Platform, tone string) string {
	return fmt.Sprintf(`Adapt the following content for %s with a %s tone:

Original Content: %s

Platform Guidelines:
%s

Please create an optimized version that follows the platform's best practices and character limits.
Include appropriate hashtags and formatting for %s.

Return only the adapted content without any explanations.`,
		platform, tone, sourceText, platformGuidelines[platform], platform)
}

func refinePrompt(currentContent, instruction string, platform domain.Platform) string {
	return fmt.Sprintf(`Current %s content: %s

User request: %s

Platform Guidelines:
%s

Please refine the content according to the user's request while maintaining platform best practices.
Return only the refined content without any explanations.`,
		platform, currentContent, instruction, platformGuidelines[platform])
}
