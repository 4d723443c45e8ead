package domain

// SearchKind classifies what a raw query turned out to be.
type SearchKind int

const (
	KindSearch SearchKind = iota
	KindDirectURL
	KindPlaylist
	KindSpotifyTrack
	KindSpotifyAlbum
	KindSpotifyPlaylist
)

func (k SearchKind) String() string {
	switch k {
	case KindDirectURL:
		return "direct_url"
	case KindPlaylist:
		return "playlist"
	case KindSpotifyTrack:
		return "spotify_track"
	case KindSpotifyAlbum:
		return "spotify_album"
	case KindSpotifyPlaylist:
		return "spotify_playlist"
	}
	return "search"
}

// Cacheable reports whether the resolved search string for this kind may be
// stored in the search cache. Only third-party resolutions are worth caching;
// direct URLs resolve to themselves and plain searches are intentionally
// re-ranked by the backend.
func (k SearchKind) Cacheable() bool {
	switch k {
	case KindSpotifyTrack, KindSpotifyAlbum, KindSpotifyPlaylist:
		return true
	}
	return false
}

// MediaRequest is one unit of work flowing through the pipeline: a single
// track to resolve and, usually, download. Collection queries expand into
// several requests before queueing.
type MediaRequest struct {
	ID             string
	GuildID        string
	RequesterID    string
	RequesterName  string
	OriginalSearch string
	Search         string
	Kind           SearchKind
	Download       bool
	FromHistory    bool
	Shuffle        bool

	NotFoundFuncs []func(*MediaRequest)
	CompleteFuncs []func(*MediaRequest, *DownloadOutcome)
}

// Resolve records the canonical URL the search resolved to. Subsequent
// lookups for the same request use the resolved form.
func (r *MediaRequest) Resolve(url string) {
	if url != "" {
		r.Search = url
	}
}

// NotifyNotFound invokes the not-found callbacks in registration order.
func (r *MediaRequest) NotifyNotFound() {
	for _, fn := range r.NotFoundFuncs {
		fn(r)
	}
}

// NotifyComplete invokes the completion callbacks in registration order.
func (r *MediaRequest) NotifyComplete(outcome *DownloadOutcome) {
	for _, fn := range r.CompleteFuncs {
		fn(r, outcome)
	}
}
