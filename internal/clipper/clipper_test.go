package clipper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestAllowed(t *testing.T) {
	c := NewClipper([]string{"chefkoch.de", " .Lecker.de "})

	tests := []struct {
		host string
		want bool
	}{
		{"chefkoch.de", true},
		{"www.chefkoch.de", true},
		{"CHEFKOCH.DE", true},
		{"lecker.de", true},
		{"evilchefkoch.de", false},
		{"chefkoch.de.evil.com", false},
		{"localhost", false},
		{"169.254.169.254", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := c.Allowed(tt.host); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	c := NewClipper([]string{"chefkoch.de"})

	for _, raw := range []string{"ftp://chefkoch.de/rezept", "file:///etc/passwd", "chefkoch.de/rezept"} {
		u, _ := url.Parse(raw)
		if err := c.Check(u); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Check(%q) = %v, want ErrInvalidURL", raw, err)
		}
	}

	u, _ := url.Parse("https://example.com/")
	if err := c.Check(u); !errors.Is(err, ErrDomainNotAllowed) {
		t.Errorf("Expected ErrDomainNotAllowed, got %v", err)
	}

	u, _ = url.Parse("https://www.chefkoch.de/rezepte/123")
	if err := c.Check(u); err != nil {
		t.Errorf("Expected allowed URL, got %v", err)
	}
}

func TestFetchText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `
		<html>
			<head><script>alert('bad');</script><style>body{}</style></head>
			<body>
				<nav>Startseite | Rezepte</nav>
				<h1>Tasty   Recipe</h1>
				<div class="ads">Buy stuff!</div>
				<p>Mix flour
				and water.</p>
				<script>more_bad_stuff()</script>
				<iframe src="x"></iframe>
				<footer>Copyright 2024</footer>
			</body>
		</html>`
		_, _ = w.Write([]byte(html))
	}))
	defer ts.Close()

	c := NewClipper([]string{"127.0.0.1"})

	t.Run("Cleans", func(t *testing.T) {
		text, err := c.FetchText(context.Background(), ts.URL)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		for _, unwanted := range []string{"alert('bad')", "Buy stuff!", "Copyright 2024", "Startseite", "more_bad_stuff"} {
			if strings.Contains(text, unwanted) {
				t.Errorf("Expected %q to be removed, got %q", unwanted, text)
			}
		}
		if text != "Tasty Recipe Mix flour and water." {
			t.Errorf("Unexpected text %q", text)
		}
	})

	t.Run("Truncates", func(t *testing.T) {
		short := NewClipper([]string{"127.0.0.1"}, WithLimits(DefaultMaxBytes, 5))
		text, err := short.FetchText(context.Background(), ts.URL)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if text != "Tasty" {
			t.Errorf("Expected 'Tasty', got %q", text)
		}
	})

	t.Run("DisallowedHost", func(t *testing.T) {
		blocked := NewClipper([]string{"chefkoch.de"})
		_, err := blocked.FetchText(context.Background(), ts.URL)
		if !errors.Is(err, ErrDomainNotAllowed) {
			t.Fatalf("Expected ErrDomainNotAllowed, got %v", err)
		}
	})
}

func TestFetchTextErrors(t *testing.T) {
	t.Run("Status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer ts.Close()

		_, err := NewClipper([]string{"127.0.0.1"}).FetchText(context.Background(), ts.URL)
		if !errors.Is(err, ErrFetch) || !strings.Contains(err.Error(), "status 404") {
			t.Fatalf("Expected fetch error with status, got %v", err)
		}
	})

	t.Run("RedirectToDisallowedHost", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "http://169.254.169.254/latest/meta-data", http.StatusFound)
		}))
		defer ts.Close()

		_, err := NewClipper([]string{"127.0.0.1"}).FetchText(context.Background(), ts.URL)
		if !errors.Is(err, ErrDomainNotAllowed) {
			t.Fatalf("Expected ErrDomainNotAllowed, got %v", err)
		}
	})

	t.Run("Unparseable", func(t *testing.T) {
		_, err := NewClipper(nil).FetchText(context.Background(), "http://%zz")
		if !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("Expected ErrInvalidURL, got %v", err)
		}
	})
}
