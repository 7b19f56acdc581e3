// Package platform classifies post URLs into a platform tag and a
// canonical post identifier. Detection is a pure string function: no
// network I/O, no guessing. URLs that match no supported shape return
// a typed error.
package platform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/archivebot/mediarchive/internal/media"
)

// Detection is the result of classifying a URL.
type Detection struct {
	Platform media.Platform
	PostID   string
}

type urlPattern struct {
	platform media.Platform
	re       *regexp.Regexp
}

// Each pattern captures exactly one group: the canonical post identifier.
var urlPatterns = []urlPattern{
	{media.PlatformTwitter, regexp.MustCompile(`(?i)^https?://(?:www\.|mobile\.)?(?:twitter\.com|x\.com)/\w+/status/(\d+)`)},
	{media.PlatformTwitter, regexp.MustCompile(`(?i)^https?://t\.co/(\w+)`)},
	{media.PlatformFacebook, regexp.MustCompile(`(?i)^https?://(?:www\.|m\.)?facebook\.com/[\w.\-]+/posts/(\d+)`)},
	{media.PlatformFacebook, regexp.MustCompile(`(?i)^https?://(?:www\.)?facebook\.com/permalink\.php\?story_fbid=(\d+)`)},
	{media.PlatformFacebook, regexp.MustCompile(`(?i)^https?://(?:www\.)?facebook\.com/watch/?\?v=(\d+)`)},
	{media.PlatformFacebook, regexp.MustCompile(`(?i)^https?://(?:www\.)?facebook\.com/[\w.\-]+/videos/(\d+)`)},
	{media.PlatformFacebook, regexp.MustCompile(`(?i)^https?://(?:www\.)?facebook\.com/share/[pv]/([\w\-]+)`)},
	{media.PlatformFacebook, regexp.MustCompile(`(?i)^https?://(?:www\.)?fb\.com/(\w+)`)},
	{media.PlatformInstagram, regexp.MustCompile(`(?i)^https?://(?:www\.)?instagram\.com/(?:p|reel|tv)/([\w\-]+)`)},
	{media.PlatformInstagram, regexp.MustCompile(`(?i)^https?://instagr\.am/p/([\w\-]+)`)},
	{media.PlatformTikTok, regexp.MustCompile(`(?i)^https?://(?:www\.)?tiktok\.com/@[\w.\-]+/video/(\d+)`)},
	{media.PlatformTikTok, regexp.MustCompile(`(?i)^https?://(?:www\.)?tiktok\.com/t/([\w\-]+)`)},
	{media.PlatformTikTok, regexp.MustCompile(`(?i)^https?://v[mt]\.tiktok\.com/([\w\-]+)`)},
	{media.PlatformTikTok, regexp.MustCompile(`(?i)^https?://m\.tiktok\.com/v/(\d+)`)},
}

// Detect classifies a post URL. Unrecognized URLs return an error
// wrapping media.ErrUnrecognizedPlatform, never a partial result.
func Detect(url string) (Detection, error) {
	url = strings.TrimSpace(url)
	for _, p := range urlPatterns {
		if m := p.re.FindStringSubmatch(url); m != nil {
			return Detection{Platform: p.platform, PostID: m[1]}, nil
		}
	}
	return Detection{}, fmt.Errorf("%w: %s", media.ErrUnrecognizedPlatform, url)
}

// Supported reports whether a URL belongs to any supported platform.
func Supported(url string) bool {
	_, err := Detect(url)
	return err == nil
}

var (
	urlRe     = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	hashtagRe = regexp.MustCompile(`#(\w+)`)
)

// ExtractURLs returns all URLs found in free-form text.
func ExtractURLs(text string) []string {
	return urlRe.FindAllString(text, -1)
}

// ExtractHashtags returns the deduplicated, lowercased hashtags in text,
// in first-seen order.
func ExtractHashtags(text string) []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// Examples returns one representative post URL per supported platform,
// for help output.
func Examples() map[media.Platform]string {
	return map[media.Platform]string{
		media.PlatformTwitter:   "https://x.com/user/status/123456",
		media.PlatformFacebook:  "https://facebook.com/user/posts/123456",
		media.PlatformInstagram: "https://instagram.com/p/ABC123",
		media.PlatformTikTok:    "https://tiktok.com/@user/video/123456",
	}
}
