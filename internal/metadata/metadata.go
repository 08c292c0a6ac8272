/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package metadata resolves display information (title, artist, thumbnail)
// for music links. Lookups are best effort: every failure is reported as
// "not found" and nothing is retried. Successful results are cached by url.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	YouTube      = "YouTube"
	YouTubeMusic = "YouTube Music"
	Spotify      = "Spotify"
	Deezer       = "Deezer"
	AppleMusic   = "Apple Music"
	SoundCloud   = "SoundCloud"
	YandexMusic  = "Yandex Music"

	maxBody = 1 << 20
)

type Metadata struct {
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Service   string `json:"service"`
}

var services = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{Spotify, regexp.MustCompile(`spotify\.com`)},
	{YouTubeMusic, regexp.MustCompile(`music\.youtube\.com`)},
	{YouTube, regexp.MustCompile(`youtube\.com|youtu\.be`)},
	{Deezer, regexp.MustCompile(`deezer\.com`)},
	{AppleMusic, regexp.MustCompile(`music\.apple\.com`)},
	{SoundCloud, regexp.MustCompile(`soundcloud\.com`)},
	{YandexMusic, regexp.MustCompile(`music\.yandex\.ru`)},
}

var (
	youTubeID = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
		regexp.MustCompile(`youtube\.com/v/([^&\n?#]+)`),
	}
	deezerID = []*regexp.Regexp{
		regexp.MustCompile(`deezer\.com/[a-z]{2}/track/(\d+)`),
		regexp.MustCompile(`deezer\.com/track/(\d+)`),
	}
)

// Detect returns the name of the music service a link belongs to.
func Detect(link string) (string, bool) {
	if link == "" {
		return "", false
	}
	for _, s := range services {
		if s.pattern.MatchString(link) {
			return s.name, true
		}
	}
	return "", false
}

// Service looks up metadata over HTTP. The endpoint fields default to the
// public APIs and may be pointed elsewhere.
type Service struct {
	YouTubeEndpoint    string
	SpotifyEndpoint    string
	SoundCloudEndpoint string
	DeezerEndpoint     string

	Logf func(format string, args ...any)

	client *http.Client
	group  singleflight.Group

	mu    sync.RWMutex
	cache map[string]Metadata
}

func New(timeout time.Duration) *Service {
	return &Service{
		YouTubeEndpoint:    "https://www.youtube.com/oembed",
		SpotifyEndpoint:    "https://open.spotify.com/oembed",
		SoundCloudEndpoint: "https://soundcloud.com/oembed",
		DeezerEndpoint:     "https://api.deezer.com",
		Logf:               func(string, ...any) {},
		client:             &http.Client{Timeout: timeout},
		cache:              make(map[string]Metadata),
	}
}

// Len returns the number of cached results.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.cache)
}

// Clear drops every cached result.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.cache)
}

// Lookup resolves link. Concurrent lookups of the same link share a single
// request.
func (s *Service) Lookup(ctx context.Context, link string) (Metadata, bool) {
	s.mu.RLock()
	md, ok := s.cache[link]
	s.mu.RUnlock()
	if ok {
		return md, true
	}

	name, ok := Detect(link)
	if !ok {
		return Metadata{}, false
	}

	v, _, _ := s.group.Do(link, func() (any, error) {
		md, ok := s.fetch(ctx, name, link)
		if ok {
			s.mu.Lock()
			s.cache[link] = md
			s.mu.Unlock()
		}
		return lookup{md, ok}, nil
	})

	res := v.(lookup)
	return res.md, res.ok
}

type lookup struct {
	md Metadata
	ok bool
}

func (s *Service) fetch(ctx context.Context, name, link string) (Metadata, bool) {
	switch name {
	case YouTube, YouTubeMusic:
		if match(youTubeID, link) == "" {
			return Metadata{}, false
		}
		return s.oEmbed(ctx, s.YouTubeEndpoint, name, link, false)
	case Spotify:
		md, ok := s.oEmbed(ctx, s.SpotifyEndpoint, name, link, true)
		if !ok {
			return basic(link, name)
		}
		return md, true
	case SoundCloud:
		return s.oEmbed(ctx, s.SoundCloudEndpoint, name, link, false)
	case Deezer:
		return s.deezer(ctx, link)
	default:
		return basic(link, name)
	}
}

type oEmbedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (s *Service) oEmbed(ctx context.Context, endpoint, name, link string, withArtist bool) (Metadata, bool) {
	q := url.Values{"url": {link}, "format": {"json"}}

	var resp oEmbedResponse
	if err := s.getJSON(ctx, endpoint+"?"+q.Encode(), &resp); err != nil {
		s.Logf("METADATA: %s lookup of %s failed: %v", name, link, err)
		return Metadata{}, false
	}

	md := Metadata{
		Title:     resp.Title,
		Thumbnail: resp.ThumbnailURL,
		Service:   name,
	}
	if md.Title == "" {
		md.Title = "Unknown Title"
	}
	if withArtist {
		md.Artist = resp.AuthorName
	}

	return md, true
}

type deezerTrack struct {
	Title    string `json:"title"`
	Duration int    `json:"duration"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		CoverMedium string `json:"cover_medium"`
	} `json:"album"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Service) deezer(ctx context.Context, link string) (Metadata, bool) {
	id := match(deezerID, link)
	if id == "" {
		return basic(link, Deezer)
	}

	var track deezerTrack
	if err := s.getJSON(ctx, s.DeezerEndpoint+"/track/"+id, &track); err != nil {
		s.Logf("METADATA: Deezer lookup of %s failed: %v", link, err)
		return basic(link, Deezer)
	}
	if track.Error != nil {
		s.Logf("METADATA: Deezer returned error for track %s: %s", id, track.Error.Message)
		return basic(link, Deezer)
	}

	md := Metadata{
		Title:     track.Title,
		Artist:    track.Artist.Name,
		Thumbnail: track.Album.CoverMedium,
		Duration:  track.Duration,
		Service:   Deezer,
	}
	if md.Title == "" {
		md.Title = "Unknown Title"
	}

	return md, true
}

func (s *Service) getJSON(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v)
}

func match(patterns []*regexp.Regexp, link string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}

// basic derives a title from the last path segment of link, for services
// without a usable API.
func basic(link, name string) (Metadata, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return Metadata{}, false
	}

	title := "Unknown Track"

	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if last != "track" && last != "album" {
			if unescaped, err := url.PathUnescape(last); err == nil {
				last = unescaped
			}
			last = strings.NewReplacer("-", " ", "_", " ").Replace(last)
			title = cases.Title(language.Und, cases.NoLower).String(last)
		}
	}

	return Metadata{Title: title, Service: name}, true
}
