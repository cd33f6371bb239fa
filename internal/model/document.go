package model

import "encoding/json"

// rawDocument mirrors Document with deferred decoding so a document
// with a missing or malformed collection still loads. Adapters feed
// arbitrary on-disk JSON through here; a corrupt tasks array must not
// take the projects down with it.
type rawDocument struct {
	Tasks    json.RawMessage `json:"tasks"`
	Projects json.RawMessage `json:"projects"`
	Sections json.RawMessage `json:"sections"`
	Areas    json.RawMessage `json:"areas"`
	Settings json.RawMessage `json:"settings"`
}

// DecodeDocument parses a persisted document, treating missing or
// malformed collections as empty rather than failing the whole load.
// Only a top-level syntax error is reported.
func DecodeDocument(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := NewDocument()
	if len(raw.Tasks) > 0 {
		var tasks []Task
		if err := json.Unmarshal(raw.Tasks, &tasks); err == nil {
			doc.Tasks = tasks
		}
	}
	if len(raw.Projects) > 0 {
		var projects []Project
		if err := json.Unmarshal(raw.Projects, &projects); err == nil {
			doc.Projects = projects
		}
	}
	if len(raw.Sections) > 0 {
		var sections []Section
		if err := json.Unmarshal(raw.Sections, &sections); err == nil {
			doc.Sections = sections
		}
	}
	if len(raw.Areas) > 0 {
		var areas []Area
		if err := json.Unmarshal(raw.Areas, &areas); err == nil {
			doc.Areas = areas
		}
	}
	if len(raw.Settings) > 0 {
		var settings Settings
		if err := json.Unmarshal(raw.Settings, &settings); err == nil {
			doc.Settings = settings
		}
	}
	return doc, nil
}

// EncodeDocument renders the document as pretty-printed JSON, the
// format other mindwtr clients expect to find in data.json.
func EncodeDocument(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
