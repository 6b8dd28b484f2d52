package types

import (
	"time"
)

// User represents a registered account in the credential store. The password
// is stored only as a bcrypt hash; the plaintext never leaves the auth
// package after registration or login completes.
type User struct {
	ID           int64     `json:"id"`        // Unique account identifier
	Email        string    `json:"email"`     // Login email address, unique across all accounts
	PasswordHash string    `json:"-"`         // bcrypt hash of the account password (never serialized)
	CreatedAt    time.Time `json:"createdAt"` // Account creation timestamp
}

// Profile represents a saved IPTV service configuration belonging to a user.
// Each profile holds the Xtream-Codes style credentials for one upstream
// provider plus optional per-content-type include/exclude filters. At most
// one profile per user is active at any time.
type Profile struct {
	ID                 int64     `json:"id"`                           // Unique profile identifier
	UserID             int64     `json:"userId"`                       // Owning account identifier
	Name               string    `json:"name"`                         // Descriptive name for the profile
	IPTVURL            string    `json:"iptvUrl"`                      // Upstream provider base URL
	IPTVUsername       string    `json:"iptvUsername"`                 // Upstream account username
	IPTVPassword       string    `json:"iptvPassword"`                 // Upstream account password
	IsActive           bool      `json:"isActive"`                     // Whether this is the user's active profile
	LiveIncludeRegex   string    `json:"liveIncludeRegex,omitempty"`   // Only live channels matching this pattern are listed
	LiveExcludeRegex   string    `json:"liveExcludeRegex,omitempty"`   // Live channels matching this pattern are hidden
	VODIncludeRegex    string    `json:"vodIncludeRegex,omitempty"`    // Only VOD entries matching this pattern are listed
	VODExcludeRegex    string    `json:"vodExcludeRegex,omitempty"`    // VOD entries matching this pattern are hidden
	SeriesIncludeRegex string    `json:"seriesIncludeRegex,omitempty"` // Only series matching this pattern are listed
	SeriesExcludeRegex string    `json:"seriesExcludeRegex,omitempty"` // Series matching this pattern are hidden
	CreatedAt          time.Time `json:"createdAt"`                    // Profile creation timestamp
	UpdatedAt          time.Time `json:"updatedAt"`                    // Last modification timestamp
}

// Credentials is the resolved upstream credential set used for a single
// request: either the session user's active profile or the environment
// fallback. BaseURL carries no trailing slash.
type Credentials struct {
	BaseURL  string // Upstream provider base URL without trailing slash
	Username string // Upstream account username
	Password string // Upstream account password
}

// StreamKind identifies the content type of a stream for URL construction.
type StreamKind string

const (
	StreamLive   StreamKind = "live"   // Live television channel
	StreamMovie  StreamKind = "movie"  // Video-on-demand movie
	StreamSeries StreamKind = "series" // Series episode
)

// ValidStreamKind reports whether s names a known content type.
func ValidStreamKind(s string) bool {
	switch StreamKind(s) {
	case StreamLive, StreamMovie, StreamSeries:
		return true
	}
	return false
}

// XCCategory represents a single category entry from the Xtreme Codes API
// category endpoints (get_live_categories, get_vod_categories,
// get_series_categories).
type XCCategory struct {
	CategoryID   string `json:"category_id"`   // Category identifier referenced by stream entries
	CategoryName string `json:"category_name"` // Display name for the category
	ParentID     int    `json:"parent_id"`     // Parent category identifier, 0 for top level
}

// XCLiveStream represents a single live stream entry from the Xtreme Codes
// get_live_streams endpoint, carrying the identifiers needed for stream URL
// construction and EPG integration.
type XCLiveStream struct {
	StreamID     int    `json:"stream_id"`      // Unique identifier used in stream URL construction
	Name         string `json:"name"`           // Display name of the live channel
	CategoryID   string `json:"category_id"`    // Category identifier for grouping related channels
	StreamIcon   string `json:"stream_icon"`    // URL to channel logo/icon image
	EpgChannelID string `json:"epg_channel_id"` // EPG channel identifier for program guide lookups
}

// XCVODStream represents a single video-on-demand entry from the Xtreme
// Codes get_vod_streams endpoint.
type XCVODStream struct {
	StreamID           int    `json:"stream_id"`           // Unique identifier used in stream URL construction
	Name               string `json:"name"`                // Display name of the video content
	CategoryID         string `json:"category_id"`         // Category identifier for grouping
	StreamIcon         string `json:"stream_icon"`         // URL to poster/thumbnail image
	ContainerExtension string `json:"container_extension"` // File format extension (mp4, mkv, etc.)
}

// XCSeries represents a single series entry from the Xtreme Codes
// get_series endpoint.
type XCSeries struct {
	SeriesID   int    `json:"series_id"`   // Unique identifier used in stream URL construction
	Name       string `json:"name"`        // Display name of the series
	CategoryID string `json:"category_id"` // Category identifier for grouping
	Cover      string `json:"cover"`       // URL to series cover artwork
}

// EPGChannel is the simplified channel shape served to the UI after XMLTV
// decoding.
type EPGChannel struct {
	ID          string `json:"id"`             // XMLTV channel identifier
	DisplayName string `json:"displayName"`   // Human-readable channel name
	Icon        string `json:"icon,omitempty"` // Channel icon URL when present
}

// EPGProgramme is the simplified programme shape served to the UI after
// XMLTV decoding. Start and Stop keep the raw XMLTV timestamp strings.
type EPGProgramme struct {
	Channel     string `json:"channel"`               // XMLTV channel identifier this programme airs on
	Title       string `json:"title"`                 // Programme title
	Description string `json:"description,omitempty"` // Programme description when present
	Start       string `json:"start"`                 // Start time in XMLTV format
	Stop        string `json:"stop"`                  // Stop time in XMLTV format
}

// EPGData is the whole simplified guide document.
type EPGData struct {
	Channels   []EPGChannel   `json:"channels"`
	Programmes []EPGProgramme `json:"programmes"`
}
