package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"soundarr/internal/domain"
)

const (
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifyAPIBase   = "https://api.spotify.com/v1"
	tokenExpirySlack = 30 * time.Second
)

// SpotifyResolver expands Spotify track, album and playlist URLs into plain
// search strings via the Web API's client-credentials flow.
type SpotifyResolver struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewSpotifyResolver(clientID, clientSecret string, timeout time.Duration) *SpotifyResolver {
	return &SpotifyResolver{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type spotifyToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyTrack struct {
	Name    string          `json:"name"`
	Artists []spotifyArtist `json:"artists"`
}

type spotifyPlaylistItem struct {
	Track *spotifyTrack `json:"track"`
}

type spotifyPlaylistPage struct {
	Items []spotifyPlaylistItem `json:"items"`
	Next  string                `json:"next"`
}

type spotifyAlbumPage struct {
	Items []spotifyTrack `json:"items"`
	Next  string         `json:"next"`
}

func (r *SpotifyResolver) ResolveTrack(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := resourceID(rawURL, "track")
	if err != nil {
		return "", err
	}

	var track spotifyTrack
	if err := r.get(ctx, spotifyAPIBase+"/tracks/"+id, &track); err != nil {
		return "", err
	}
	return searchString(&track), nil
}

func (r *SpotifyResolver) ResolveCollection(ctx context.Context, rawURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if id, err := resourceID(rawURL, "playlist"); err == nil {
		return r.playlistTracks(ctx, id)
	}
	id, err := resourceID(rawURL, "album")
	if err != nil {
		return nil, err
	}
	return r.albumTracks(ctx, id)
}

func (r *SpotifyResolver) playlistTracks(ctx context.Context, id string) ([]string, error) {
	var searches []string
	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=100", spotifyAPIBase, id)

	for next != "" {
		var page spotifyPlaylistPage
		if err := r.get(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track == nil {
				continue
			}
			searches = append(searches, searchString(item.Track))
		}
		next = page.Next
	}
	return searches, nil
}

func (r *SpotifyResolver) albumTracks(ctx context.Context, id string) ([]string, error) {
	var searches []string
	next := fmt.Sprintf("%s/albums/%s/tracks?limit=50", spotifyAPIBase, id)

	for next != "" {
		var page spotifyAlbumPage
		if err := r.get(ctx, next, &page); err != nil {
			return nil, err
		}
		for i := range page.Items {
			searches = append(searches, searchString(&page.Items[i]))
		}
		next = page.Next
	}
	return searches, nil
}

func (r *SpotifyResolver) get(ctx context.Context, endpoint string, out interface{}) error {
	token, err := r.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &domain.ThirdPartyError{Source: "spotify", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &domain.ThirdPartyError{Source: "spotify", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.ThirdPartyError{
			Source: "spotify",
			Err:    fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ThirdPartyError{Source: "spotify", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (r *SpotifyResolver) token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.expiresAt.Add(-tokenExpirySlack)) {
		return r.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spotifyTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &domain.ThirdPartyError{Source: "spotify", Err: err}
	}
	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &domain.ThirdPartyError{Source: "spotify", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &domain.ThirdPartyError{
			Source: "spotify",
			Err:    fmt.Errorf("token request status: %s", resp.Status),
		}
	}

	var token spotifyToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", &domain.ThirdPartyError{Source: "spotify", Err: fmt.Errorf("decoding token: %w", err)}
	}

	r.accessToken = token.AccessToken
	r.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return r.accessToken, nil
}

// resourceID pulls the id out of an open.spotify.com/<kind>/<id> URL.
func resourceID(rawURL, kind string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", domain.ErrInvalidSearchURL
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == kind && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", domain.ErrInvalidSearchURL
}

func searchString(track *spotifyTrack) string {
	names := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		names = append(names, artist.Name)
	}
	if len(names) == 0 {
		return track.Name
	}
	return fmt.Sprintf("%s - %s", strings.Join(names, ", "), track.Name)
}
