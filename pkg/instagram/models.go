package instagram

import (
	"time"

	"igepub/pkg/models"
)

// ProfileResponse is the profile and timeline document returned by both
// the profile endpoint and the timeline query endpoint
type ProfileResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Data            Data   `json:"data"`
	Status          string `json:"status"`
}

// Data wraps the user information in the response
type Data struct {
	User *User `json:"user"`
}

// User represents an Instagram user profile
type User struct {
	ID                       string                   `json:"id"`
	Username                 string                   `json:"username"`
	EdgeOwnerToTimelineMedia EdgeOwnerToTimelineMedia `json:"edge_owner_to_timeline_media"`
}

// EdgeOwnerToTimelineMedia contains one page of the user's media
type EdgeOwnerToTimelineMedia struct {
	Count    int      `json:"count"`
	PageInfo PageInfo `json:"page_info"`
	Edges    []Edge   `json:"edges"`
}

// PageInfo contains pagination information
type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// Edge wraps a single media node
type Edge struct {
	Node Node `json:"node"`
}

// Node represents a single timeline item (photo or video)
type Node struct {
	ID                 string             `json:"id"`
	Shortcode          string             `json:"shortcode"`
	DisplayURL         string             `json:"display_url"`
	IsVideo            bool               `json:"is_video"`
	TakenAtTimestamp   int64              `json:"taken_at_timestamp"`
	EdgeMediaToCaption EdgeMediaToCaption `json:"edge_media_to_caption"`
}

// EdgeMediaToCaption holds the caption edges; only the first one is used
type EdgeMediaToCaption struct {
	Edges []struct {
		Node struct {
			Text string `json:"text"`
		} `json:"node"`
	} `json:"edges"`
}

// Post converts a timeline node into a provider post
func (n Node) Post() models.Post {
	p := models.Post{
		ID:       n.Shortcode,
		ImageURL: n.DisplayURL,
		PostURL:  GetPostURL(n.Shortcode),
		IsVideo:  n.IsVideo,
	}
	if len(n.EdgeMediaToCaption.Edges) > 0 {
		p.Caption = n.EdgeMediaToCaption.Edges[0].Node.Text
	}
	if n.TakenAtTimestamp > 0 {
		p.TakenAt = time.Unix(n.TakenAtTimestamp, 0).UTC()
	}
	return p
}

// HashtagResponse is the first page of a tag's recent media
type HashtagResponse struct {
	Data struct {
		Name   string          `json:"name"`
		Recent HashtagSections `json:"recent"`
	} `json:"data"`
	Status string `json:"status"`
}

// HashtagSections is one page of a tag's recent media. The sections
// endpoint returns it at the top level.
type HashtagSections struct {
	Sections      []Section `json:"sections"`
	MoreAvailable bool      `json:"more_available"`
	NextMaxID     string    `json:"next_max_id"`
	NextPage      int       `json:"next_page"`
}

// Section groups a row of media in a hashtag grid
type Section struct {
	LayoutContent struct {
		Medias []struct {
			Media Media `json:"media"`
		} `json:"medias"`
	} `json:"layout_content"`
}

// Media types reported by the hashtag endpoints
const (
	MediaTypeImage    = 1
	MediaTypeVideo    = 2
	MediaTypeCarousel = 8
)

// Media is a single item in a hashtag section
type Media struct {
	Code      string `json:"code"`
	TakenAt   int64  `json:"taken_at"`
	MediaType int    `json:"media_type"`
	Caption   *struct {
		Text string `json:"text"`
	} `json:"caption"`
	ImageVersions2 ImageVersions `json:"image_versions2"`
	CarouselMedia  []struct {
		ImageVersions2 ImageVersions `json:"image_versions2"`
	} `json:"carousel_media"`
}

// ImageVersions lists renditions of an image, largest first
type ImageVersions struct {
	Candidates []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"candidates"`
}

func (v ImageVersions) best() string {
	if len(v.Candidates) == 0 {
		return ""
	}
	return v.Candidates[0].URL
}

// Post converts a hashtag media item into a provider post. For a carousel
// the first slide is the primary image.
func (m Media) Post() models.Post {
	p := models.Post{
		ID:       m.Code,
		ImageURL: m.ImageVersions2.best(),
		PostURL:  GetPostURL(m.Code),
		IsVideo:  m.MediaType == MediaTypeVideo,
	}
	if p.ImageURL == "" && len(m.CarouselMedia) > 0 {
		p.ImageURL = m.CarouselMedia[0].ImageVersions2.best()
	}
	if m.Caption != nil {
		p.Caption = m.Caption.Text
	}
	if m.TakenAt > 0 {
		p.TakenAt = time.Unix(m.TakenAt, 0).UTC()
	}
	return p
}

// Posts flattens every media item of the page in grid order
func (h HashtagSections) Posts() []models.Post {
	var posts []models.Post
	for _, section := range h.Sections {
		for _, item := range section.LayoutContent.Medias {
			posts = append(posts, item.Media.Post())
		}
	}
	return posts
}
