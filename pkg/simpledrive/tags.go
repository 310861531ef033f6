package simpledrive

import (
	"strings"
)

// Content categories used as internal tags
const (
	CategoryImage        = "image"
	CategoryVideo        = "video"
	CategoryAudio        = "audio"
	CategoryPDF          = "pdf"
	CategoryDocument     = "document"
	CategorySpreadsheet  = "spreadsheet"
	CategoryPresentation = "presentation"
	CategoryCode         = "code"

	// TagMedia is added alongside image and video categories
	TagMedia = "media"
)

var mimeCategories = map[string]string{
	"application/pdf":    CategoryPDF,
	"application/msword": CategoryDocument,
	"application/rtf":    CategoryDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": CategoryDocument,
	"application/vnd.oasis.opendocument.text":                                 CategoryDocument,
	"application/vnd.ms-excel":                                                CategorySpreadsheet,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       CategorySpreadsheet,
	"application/vnd.oasis.opendocument.spreadsheet":                          CategorySpreadsheet,
	"text/csv":                      CategorySpreadsheet,
	"application/vnd.ms-powerpoint": CategoryPresentation,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": CategoryPresentation,
	"application/vnd.oasis.opendocument.presentation":                           CategoryPresentation,
	"application/javascript": CategoryCode,
	"text/javascript":        CategoryCode,
	"application/json":       CategoryCode,
	"text/html":              CategoryCode,
	"text/css":               CategoryCode,
	"text/x-python":          CategoryCode,
	"text/x-java-source":     CategoryCode,
	"text/x-c":               CategoryCode,
	"text/x-go":              CategoryCode,
}

var extensionCategories = map[string]string{
	".doc": CategoryDocument, ".docx": CategoryDocument, ".odt": CategoryDocument,
	".rtf": CategoryDocument, ".txt": CategoryDocument, ".md": CategoryDocument,
	".xls": CategorySpreadsheet, ".xlsx": CategorySpreadsheet, ".ods": CategorySpreadsheet,
	".csv": CategorySpreadsheet,
	".ppt": CategoryPresentation, ".pptx": CategoryPresentation, ".odp": CategoryPresentation,
	".pdf": CategoryPDF,
	".js":  CategoryCode, ".ts": CategoryCode, ".py": CategoryCode, ".java": CategoryCode,
	".c": CategoryCode, ".cpp": CategoryCode, ".h": CategoryCode, ".go": CategoryCode,
	".rb": CategoryCode, ".rs": CategoryCode, ".php": CategoryCode, ".html": CategoryCode,
	".css": CategoryCode, ".sh": CategoryCode, ".sql": CategoryCode, ".json": CategoryCode,
}

// Category returns the coarse content category for a MIME type and
// lower-cased extension, or "" when nothing matches. Media prefixes win over
// exact MIME matches, which win over the extension.
func Category(mimeType, extension string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return CategoryImage
	case strings.HasPrefix(mimeType, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return CategoryAudio
	}
	if c, ok := mimeCategories[mimeType]; ok {
		return c
	}
	if c, ok := extensionCategories[extension]; ok {
		return c
	}
	if strings.HasPrefix(mimeType, "text/") {
		return CategoryDocument
	}
	return ""
}

// InternalTags derives the system tags of a file: its MIME type, its
// category and, for images and videos, the media tag
func InternalTags(mimeType, extension string) []string {
	tags := []string{}
	if mimeType != "" {
		tags = append(tags, mimeType)
	}
	category := Category(mimeType, extension)
	if category == CategoryImage || category == CategoryVideo {
		tags = append(tags, TagMedia)
	}
	if category != "" {
		tags = append(tags, category)
	}
	return tags
}
