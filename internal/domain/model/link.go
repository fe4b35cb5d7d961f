package model

// TransformedLink holds the proxied playback links and the bot re-entry link for one resource.
type TransformedLink struct {
	Original      string
	ResourceID    string
	PlaybackLinks []string
	ShareLink     string
}
