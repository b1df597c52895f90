package jobboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

func noSleep(context.Context, time.Duration) error { return nil }

// newTestClient starts srv with handler and builds a client for it whose
// executor never waits.
func newTestClient(t *testing.T, ctor func(...Option) Client, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	proto := ctor()
	exec := resilience.NewExecutor(proto.ID(), proto.DefaultRateLimit(), resilience.WithClock(time.Now, noSleep))
	return ctor(WithBaseURL(srv.URL), WithExecutor(exec))
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

var allConstructors = map[string]func(...Option) Client{
	LinkedInID:     NewLinkedIn,
	IndeedID:       NewIndeed,
	GlassdoorID:    NewGlassdoor,
	ZipRecruiterID: NewZipRecruiter,
	MonsterID:      NewMonster,
	ReedID:         NewReed,
	SeekID:         NewSeek,
	NaukriID:       NewNaukri,
	DiceID:         NewDice,
	WellfoundID:    NewWellfound,
}
