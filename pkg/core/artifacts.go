package core

// Attachment is a debug artifact captured for a failed case.
type Attachment struct {
	Name        string `json:"name"`        // screenshot, hierarchy
	ContentType string `json:"contentType"` // MIME type
	Path        string `json:"path"`        // Relative to the output directory
}

// Attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeXML  = "application/xml"
	ContentTypeHTML = "text/html"
)
