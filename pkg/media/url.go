package media

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnsupportedURL is returned for links that are neither YouTube Shorts nor
// Instagram Reels.
var ErrUnsupportedURL = errors.New("unsupported video link")

var (
	youTubePattern   = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/|shorts/|youtube\.com/shorts/)([^"&?/\s]{11})`)
	instagramPattern = regexp.MustCompile(`(?:www\.|m\.)?instagram\.com/(?:reel|p)/([A-Za-z0-9_-]+)`)
)

// LinkKind classifies a downloadable link.
type LinkKind string

const (
	LinkUnknown        LinkKind = ""
	LinkYouTube        LinkKind = "youtube"
	LinkYouTubeShorts  LinkKind = "youtube_shorts"
	LinkInstagramReels LinkKind = "instagram_reel"
)

// Classify returns the kind of video link, or LinkUnknown.
func Classify(url string) LinkKind {
	switch {
	case instagramPattern.MatchString(url):
		return LinkInstagramReels
	case youTubePattern.MatchString(url):
		if strings.Contains(url, "/shorts/") {
			return LinkYouTubeShorts
		}
		return LinkYouTube
	default:
		return LinkUnknown
	}
}

// IsSupportedVideoURL reports whether url is a YouTube or Instagram video
// link the downloader accepts.
func IsSupportedVideoURL(url string) bool {
	return Classify(url) != LinkUnknown
}

// YouTubeID extracts the 11-character video id.
func YouTubeID(url string) (string, bool) {
	match := youTubePattern.FindStringSubmatch(url)
	if len(match) < 2 {
		return "", false
	}

	return match[1], true
}

// InstagramID extracts the reel or post shortcode.
func InstagramID(url string) (string, bool) {
	match := instagramPattern.FindStringSubmatch(url)
	if len(match) < 2 {
		return "", false
	}

	return match[1], true
}
