package chat

import (
	"fmt"
	"path"
	"strings"
	"time"

	"docgpt-backend/internal/database"
	"docgpt-backend/internal/loaders"
)

const maxTitleURLLength = 30

// Title names a new chat. URLs longer than 30 characters are shortened, file
// sources use the stored file name.
func Title(docType loaders.DocumentType, ref string) string {
	switch docType {
	case loaders.Site:
		return "Site: " + shorten(ref)
	case loaders.Youtube:
		return "YouTube: " + shorten(ref)
	default:
		return fmt.Sprintf("%s: %s", docType, path.Base(ref))
	}
}

func shorten(ref string) string {
	runes := []rune(ref)
	if len(runes) > maxTitleURLLength {
		return string(runes[:maxTitleURLLength]) + "..."
	}
	return ref
}

const searchDateLayout = "02/01/2006"

// MatchesSearch reports whether term occurs in the chat title, ignoring case,
// or in its creation date written as DD/MM/YYYY (UTC).
func MatchesSearch(chat database.Chat, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(chat.Title), strings.ToLower(term)) {
		return true
	}
	return strings.Contains(chat.CreatedAt.In(time.UTC).Format(searchDateLayout), term)
}
