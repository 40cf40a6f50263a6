package genai

import (
	"fmt"
	"regexp"
	"strings"
)

// SuggestionPrompt asks for one actionable mentor suggestion for the buffer.
func SuggestionPrompt(code string) string {
	return fmt.Sprintf("You are a senior developer mentor observing a real-time coding session. Review the following JavaScript code snippet for efficiency, potential bugs, or best practices. \n            \nCode:\n\n```javascript\n%s\n```\n\nProvide one concise, actionable suggestion that is not a trivial syntax fix. If the code is perfect or too simple, suggest a next feature to implement. Respond with only the suggestion text, nothing else.", code)
}

// SummaryPrompt asks for a project-report style digest of the session.
func SummaryPrompt(code string) string {
	return fmt.Sprintf("You are a technical documentarian. Generate a concise, professional summary for this collaborative coding session. \n            Focus on the final code state and potential next steps based on the code provided. The code is:\n            \n            \n\n```javascript\n%s\n```\n\nGenerate a summary suitable for a project report. Start with 'Session Summary:'", code)
}

// TranslationPrompt asks for a functionally equivalent rewrite of the buffer
// in another language, with only the code block as output.
func TranslationPrompt(code, sourceLang, targetLang string) string {
	return fmt.Sprintf("You are a world-class programming language translator. Your task is to accurately convert a code snippet from %s to %s.\n        \n        The translated code MUST be functionally equivalent to the source code. ONLY output the translated code block, nothing else. DO NOT include any explanations, markdown headers, or surrounding text.\n\n        Source Code (%s):\n\n```%s\n%s\n```\n\nTranslated Code (%s):", sourceLang, targetLang, sourceLang, sourceLang, code, targetLang)
}

// ExtractCodeBlock strips a markdown fence tagged with the target language
// from a model reply. Replies without a fence are returned trimmed as-is.
func ExtractCodeBlock(text, targetLang string) string {
	pattern := fmt.Sprintf("(?i)```%s\n([\\s\\S]*?)\n```", regexp.QuoteMeta(targetLang))
	re, err := regexp.Compile(pattern)
	if err != nil {
		return strings.TrimSpace(text)
	}
	if match := re.FindStringSubmatch(text); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(text)
}
