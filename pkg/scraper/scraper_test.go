package scraper_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/nvale/orgchat/pkg/scraper"
)

func TestGetCleanedText_FollowsSameHostLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><main>Our mission is clean water.</main>
			<a href="/about">About</a>
			<a href="https://elsewhere.example/ignored">External</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><main>We operate in 12 countries.</main></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var visited []string
	s := scraper.NewWithConfig(scraper.Config{
		MaxDepth:  2,
		RateLimit: 100,
		OnProgress: func(url string) {
			visited = append(visited, url)
		},
	})

	text, err := s.GetCleanedText(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Our mission is clean water.")
	assert.Contains(t, text, "We operate in 12 countries.")
	assert.Len(t, visited, 2)
}

func TestGetCleanedText_StripsNoiseAndChrome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<nav>Site navigation</nav>
			<script>var tracking = true;</script>
			<main>Real   content    here. Cookie Policy</main>
			<footer>Footer junk</footer></body></html>`)
	}))
	defer srv.Close()

	s := scraper.NewWithConfig(scraper.Config{RateLimit: 100})
	text, err := s.GetCleanedText(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Real content here.")
	assert.NotContains(t, text, "Site navigation")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "Cookie Policy")
	assert.NotContains(t, text, "Footer junk")
}

func TestGetCleanedText_IgnorePatterns(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><main>Front page.</main><a href="/private/secret">Hidden</a></body></html>`)
	})
	mux.HandleFunc("/private/secret", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><main>Secret page.</main></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := scraper.NewWithConfig(scraper.Config{
		RateLimit:      100,
		IgnorePatterns: []string{"/private/"},
	})
	text, err := s.GetCleanedText(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Front page.")
	assert.NotContains(t, text, "Secret page.")
}

func TestGetCleanedText_ErrorOnUnreachableRoot(t *testing.T) {
	s := scraper.NewWithConfig(scraper.Config{RateLimit: 100})

	_, err := s.GetCleanedText(context.Background(), "http://127.0.0.1:1/unreachable")
	assert.Error(t, err)
}
