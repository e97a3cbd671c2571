package ollama

import "strings"

const maxReviewRunes = 4000

func clip(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > maxReviewRunes {
		runes = runes[:maxReviewRunes]
	}
	return string(runes)
}

func buildTitlePrompt(text, hint string) string {
	var b strings.Builder
	b.WriteString(`You identify which book a reader's review is about.
Return strict JSON object with keys:
title (string or null), confidence ("high", "medium" or "low"), variants (array of strings).
Use null when no specific book is discussed. Keep the title in the language the reader used.
variants holds other spellings of the same title: original language, transliteration, translated edition title.
No markdown, no extra keys.
`)
	if hint = strings.TrimSpace(hint); hint != "" {
		b.WriteString("\nThe reader suggested the book may be: ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	b.WriteString("\nReview:\n")
	b.WriteString(clip(text))
	return b.String()
}

func buildAuthorPrompt(text, title string) string {
	return `You identify the author of a book mentioned in a reader's review.
The book title is: ` + title + `
Return strict JSON object with keys:
author (string or null), confidence ("high", "medium" or "low"), variants (array of strings).
Use the review first, then your own knowledge of the title. Use null when unsure who wrote it.
variants holds other spellings of the author's name, e.g. Cyrillic and Latin.
No markdown, no extra keys.

Review:
` + clip(text)
}
