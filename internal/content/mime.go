package content

import (
	"path"
	"strings"
)

// mimeByExt maps resource file extensions to the MIME types used when
// inlining them as data URIs. Anything unlisted falls back to
// application/octet-stream, which browsers still render for most media.
var mimeByExt = map[string]string{
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".bmp":   "image/bmp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
}

// mimeForRef derives a MIME type from the extension of a resource
// reference. Fragments and query strings are ignored.
func mimeForRef(ref string) string {
	ref = stripRefSuffix(ref)
	ext := strings.ToLower(path.Ext(ref))
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// stripRefSuffix drops any fragment or query portion of a reference.
func stripRefSuffix(ref string) string {
	if i := strings.IndexAny(ref, "#?"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

// normalizeRef strips leading self and parent segments. Chapter markup
// addresses resources relative to its own location inside the archive,
// while the fetch side serves them from the archive root.
func normalizeRef(ref string) string {
	for {
		switch {
		case strings.HasPrefix(ref, "./"):
			ref = ref[2:]
		case strings.HasPrefix(ref, "../"):
			ref = ref[3:]
		default:
			return ref
		}
	}
}
