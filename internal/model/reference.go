package model

// ReferenceEntry is one item of the third-party reference dataset.
// Name and CanonicalPath are required; the rest may be empty.
type ReferenceEntry struct {
	Name          string `json:"name"`
	CanonicalPath string `json:"uniqueName"`
	ImageRef      string `json:"imageName,omitempty"`
	Type          string `json:"type,omitempty"`
	Category      string `json:"category,omitempty"`
	Description   string `json:"description,omitempty"`
}

// Valid reports whether the required fields are present.
func (e ReferenceEntry) Valid() bool {
	return e.Name != "" && e.CanonicalPath != ""
}
