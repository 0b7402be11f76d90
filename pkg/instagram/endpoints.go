package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// ProfileEndpoint returns a profile with its first page of timeline media
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// MediaEndpoint serves the following timeline pages
	MediaEndpoint = "/graphql/query/"

	// MediaQueryHash is the query hash for fetching user media
	MediaQueryHash = "e769aa130647d2354c40ea6a439bfc08"

	// HashtagEndpoint returns a tag with its first page of recent media
	HashtagEndpoint = "/api/v1/tags/web_info/"

	// HashtagSectionsEndpoint pattern serves the following recent pages of a tag
	HashtagSectionsEndpoint = "/api/v1/tags/%s/sections/"

	// AppID is the web client application id the API expects
	AppID = "936619743392459"

	// DefaultMediaLimit is the number of timeline items requested per page
	DefaultMediaLimit = 12
)

// ProfileURL constructs the URL for fetching a user's profile
func ProfileURL(base, username string) string {
	params := url.Values{}
	params.Set("username", username)
	return fmt.Sprintf("%s%s?%s", base, ProfileEndpoint, params.Encode())
}

// MediaURL constructs the URL for the timeline page after the cursor
func MediaURL(base, userID, after string) string {
	variables, _ := json.Marshal(struct {
		ID    string `json:"id"`
		First int    `json:"first"`
		After string `json:"after,omitempty"`
	}{ID: userID, First: DefaultMediaLimit, After: after})

	params := url.Values{}
	params.Set("query_hash", MediaQueryHash)
	params.Set("variables", string(variables))
	return fmt.Sprintf("%s%s?%s", base, MediaEndpoint, params.Encode())
}

// HashtagURL constructs the URL for a tag's first page
func HashtagURL(base, tag string) string {
	params := url.Values{}
	params.Set("tag_name", tag)
	return fmt.Sprintf("%s%s?%s", base, HashtagEndpoint, params.Encode())
}

// HashtagSectionsURL constructs the URL for a tag's following pages
func HashtagSectionsURL(base, tag string) string {
	return base + fmt.Sprintf(HashtagSectionsEndpoint, url.PathEscape(tag))
}

// GetPostURL constructs the canonical URL for a post
func GetPostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// SanitizeUsername strips a leading '@' and trailing slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}

// IsValidUsername checks a username against the platform's character rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}
	return true
}
