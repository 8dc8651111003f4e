package fetch

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/temoto/robotstxt"
)

func TestIsBlocked(t *testing.T) {
	cases := []struct {
		name string
		html string
		want bool
	}{
		{"real page", "<html><body><h1>Arsenal Tickets</h1></body></html>", false},
		{"cloudflare challenge", "<html><title>Just a moment</title>Checking your browser before accessing</html>", true},
		{"captcha", "<html>Please solve this CAPTCHA to continue</html>", true},
		{"access denied", "<html><h1>Access Denied</h1></html>", true},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isBlocked(tc.html); got != tc.want {
				t.Errorf("isBlocked = %v, want %v", got, tc.want)
			}
		})
	}
}

// robotsFetcher builds a Fetcher without starting a browser; robots
// checking only needs the HTTP client and cache.
func robotsFetcher() *Fetcher {
	return &Fetcher{
		config:      Config{RespectRobots: true},
		robotsCache: make(map[string]*robotstxt.RobotsData),
		httpClient:  &http.Client{Timeout: 2 * time.Second},
	}
}

func TestCheckRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	}))
	defer server.Close()

	f := robotsFetcher()

	if err := f.checkRobots(server.URL + "/arsenal-tickets"); err != nil {
		t.Errorf("allowed path rejected: %v", err)
	}
	if err := f.checkRobots(server.URL + "/private/admin"); err == nil {
		t.Error("disallowed path accepted")
	}

	// Second call must come from the cache.
	if _, ok := f.robotsCache["http://"+server.Listener.Addr().String()]; !ok {
		t.Error("robots.txt not cached")
	}
}

func TestCheckRobotsMissingFile(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := robotsFetcher()
	if err := f.checkRobots(server.URL + "/anything"); err != nil {
		t.Errorf("missing robots.txt should allow fetch, got %v", err)
	}
	if err := f.checkRobots(server.URL + "/another"); err != nil {
		t.Errorf("cached permissive result rejected fetch: %v", err)
	}

	// The permissive result is cached; the host is asked only once.
	if requests != 1 {
		t.Errorf("robots.txt requested %d times, want 1", requests)
	}
}

func TestCheckRobotsUnreachable(t *testing.T) {
	f := robotsFetcher()
	// Reserved TEST-NET address, nothing listens there.
	if err := f.checkRobots("http://192.0.2.1:9/page"); err != nil {
		t.Errorf("unreachable robots.txt should allow fetch, got %v", err)
	}
	if _, ok := f.robotsCache["http://192.0.2.1:9"]; !ok {
		t.Error("unreachable host not cached as permissive")
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.MaxRetries != 3 || !c.RespectRobots {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.DelayMin > c.DelayMax {
		t.Errorf("delay window inverted: %v > %v", c.DelayMin, c.DelayMax)
	}
}
