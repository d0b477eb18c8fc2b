package module_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/hemalyze/pkg/module"
)

func echoPath() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.URL.Path)
	})
}

func TestValidatePrefix(t *testing.T) {
	tests := []struct {
		prefix string
		ok     bool
	}{
		{"/api", true},
		{"", false},
		{"api", false},
		{"/api/v1", false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			err := module.ValidatePrefix(tt.prefix)
			if (err == nil) != tt.ok {
				t.Errorf("ValidatePrefix(%q) error = %v, want ok=%v", tt.prefix, err, tt.ok)
			}
		})
	}
}

func TestNewRejectsBadPrefix(t *testing.T) {
	if _, err := module.New("/a/b", echoPath()); err == nil {
		t.Fatal("New() error = nil, want error")
	}
}

func TestRouterDispatch(t *testing.T) {
	m, err := module.New("/api", echoPath())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var order []string
	m.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "mw")
			next.ServeHTTP(w, r)
		})
	})

	router := module.NewRouter()
	router.Mount(m)
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "native")
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"module sub-path", "/api/analyze", "/analyze"},
		{"module root", "/api", "/"},
		{"trailing slash", "/api/sessions/", "/sessions"},
		{"native fallback", "/healthz", "native"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}

	if len(order) != 3 {
		t.Errorf("middleware ran %d times, want 3", len(order))
	}
}

func TestRouterNotFound(t *testing.T) {
	router := module.NewRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
