// Package media classifies filenames into the media and project categories
// relevant to ingest. Only the final dot-delimited suffix is inspected; file
// contents are never read.
package media

import (
	"path/filepath"
	"strings"
)

type MediaType int

const (
	TypeVideo MediaType = iota
	TypeAudio
	TypeImage
	TypeProject
)

func (mediaType MediaType) String() string {
	switch mediaType {
	case TypeVideo:
		return "video"
	case TypeAudio:
		return "audio"
	case TypeImage:
		return "image"
	case TypeProject:
		return "project"
	default:
		return "unknown"
	}
}

var videoExtensions = []string{
	"mp4", "mov", "avi", "mkv", "wmv", "flv", "webm", "m4v", "mpg", "mpeg",
	"mxf", "r3d", "braw", "ari",
}

var audioExtensions = []string{
	"mp3", "wav", "aac", "flac", "ogg", "m4a", "aiff", "aif", "wma",
}

var imageExtensions = []string{
	"jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "psd", "ai", "eps",
	"webp", "exr", "dpx", "tga", "raw", "cr2",
}

var projectExtensions = []string{
	"prproj", "mogrt", "xml", "aaf", "edl",
}

var extensionTypes = buildExtensionTypes()

func buildExtensionTypes() map[string]MediaType {
	types := make(map[string]MediaType, len(videoExtensions)+len(audioExtensions)+len(imageExtensions)+len(projectExtensions))
	for _, extension := range videoExtensions {
		types[extension] = TypeVideo
	}
	for _, extension := range audioExtensions {
		types[extension] = TypeAudio
	}
	for _, extension := range imageExtensions {
		types[extension] = TypeImage
	}
	for _, extension := range projectExtensions {
		types[extension] = TypeProject
	}
	return types
}

// TypeOf reports the media category of a filename. A name without an
// extension, or with an empty extension (trailing dot), has no category.
func TypeOf(name string) (MediaType, bool) {
	base := filepath.Base(name)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return 0, false
	}
	mediaType, ok := extensionTypes[strings.ToLower(base[dot+1:])]
	return mediaType, ok
}

func IsMediaFile(name string) bool {
	_, ok := TypeOf(name)
	return ok
}

// IsHidden reports whether the final path component starts with a dot.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
