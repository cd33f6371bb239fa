package persist

import (
	"strings"

	"github.com/mindwtr/mindwtr/internal/model"
)

// SanitizeForSave prepares a snapshot for the local storage adapter:
// the document is deep-copied so later in-memory mutation cannot alias
// the saved copy, and secret material is stripped from settings.
func SanitizeForSave(doc *model.Document) *model.Document {
	out := doc.Clone()
	stripSecrets(&out.Settings)
	return out
}

// SanitizeForRemote prepares a snapshot for transmission to a sync
// endpoint. On top of the local sanitization it blanks local file
// attachment URIs (paths are meaningless on other devices) and filters
// settings down to the synced sections: appearance, language, external
// calendars and AI settings.
func SanitizeForRemote(doc *model.Document) *model.Document {
	out := SanitizeForSave(doc)

	for i := range out.Tasks {
		blankLocalURIs(out.Tasks[i].Attachments)
	}
	for i := range out.Projects {
		blankLocalURIs(out.Projects[i].Attachments)
	}

	synced := model.Settings{
		Appearance:        out.Settings.Appearance,
		Language:          out.Settings.Language,
		ExternalCalendars: out.Settings.ExternalCalendars,
		AI:                out.Settings.AI,
	}
	out.Settings = synced
	return out
}

func stripSecrets(s *model.Settings) {
	if s.AI != nil {
		s.AI.APIKey = ""
	}
}

func blankLocalURIs(attachments []model.Attachment) {
	for i := range attachments {
		if strings.HasPrefix(attachments[i].URI, "file://") {
			attachments[i].URI = ""
		}
	}
}
