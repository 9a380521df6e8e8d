package sources

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"MarketPulse/internal/domain/models"
)

const (
	defaultPostLimit = 5
	// transientRetries bounds retries against the same instance before
	// rotating to the next one.
	transientRetries = 2
	// maxBodyPeek caps how much of an error body is read for
	// classification and logging.
	maxBodyPeek = 4096
)

// rotation is a cursor over a set of mirror instances. The order is
// shuffled once at construction and stays fixed afterwards, so blame
// for a bad instance is stable within a process.
type rotation struct {
	mu        sync.Mutex
	instances []string
	cursor    int
}

func newRotation(instances []string) *rotation {
	shuffled := make([]string, len(instances))
	copy(shuffled, instances)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return &rotation{instances: shuffled}
}

func (r *rotation) next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := r.instances[r.cursor%len(r.instances)]
	r.cursor++
	return inst
}

func (r *rotation) size() int { return len(r.instances) }

func (r *rotation) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.instances))
	copy(out, r.instances)
	return out
}

// challengeMarkers identify bot-challenge pages served with a 200.
var challengeMarkers = []string{
	"Making sure you're not a bot",
	"Just a moment...",
	"cf-challenge",
	"Verifying you are human",
}

func isChallengeBody(body string) bool {
	for _, m := range challengeMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// classifyStatus maps an HTTP response to a typed fetch error, or nil
// for success. The body peek catches challenge pages hiding behind 200s.
func classifyStatus(platform models.Platform, code int, body string) *models.FetchError {
	switch {
	case code == http.StatusTooManyRequests:
		return models.NewFetchError(models.FetchRateLimited, platform, fmt.Errorf("status %d", code))
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return models.NewFetchError(models.FetchBlocked, platform, fmt.Errorf("status %d", code))
	case code >= 500:
		return models.NewFetchError(models.FetchTransient, platform, fmt.Errorf("status %d", code))
	case code >= 400:
		return models.NewFetchError(models.FetchTransient, platform, fmt.Errorf("status %d", code))
	case isChallengeBody(body):
		return models.NewFetchError(models.FetchBlocked, platform, fmt.Errorf("bot challenge page"))
	}
	return nil
}

// worseOf keeps the most severe error: blocked > rate limited > transient.
func worseOf(a, b *models.FetchError) *models.FetchError {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Kind > a.Kind {
		return b
	}
	return a
}

func peekBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxBodyPeek))
	return string(b)
}

// ensureScheme defaults bare hosts to https.
func ensureScheme(instance string) string {
	if strings.HasPrefix(instance, "http://") || strings.HasPrefix(instance, "https://") {
		return strings.TrimRight(instance, "/")
	}
	return "https://" + strings.TrimRight(instance, "/")
}
