package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTTSRequest(t *testing.T) {
	before := testutil.ToFloat64(ttsRequests.WithLabelValues("cached"))
	RecordTTSRequest("cached", 0)
	RecordTTSRequest("cached", 0)

	if got := testutil.ToFloat64(ttsRequests.WithLabelValues("cached")) - before; got != 2 {
		t.Errorf("cached requests = %v, want 2", got)
	}
}

func TestSetVoiceCooldown(t *testing.T) {
	SetVoiceCooldown(90 * time.Second)
	if got := testutil.ToFloat64(voiceCooldown); got != 90 {
		t.Errorf("cooldown gauge = %v, want 90", got)
	}
	SetVoiceCooldown(0)
}

func TestLiveSessionGauge(t *testing.T) {
	LiveSessionStarted()
	LiveSessionStarted()
	LiveSessionEnded()
	if got := testutil.ToFloat64(liveSessions); got != 1 {
		t.Errorf("live sessions = %v, want 1", got)
	}
	LiveSessionEnded()
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordChatRequest("ok", time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lusa_chat_requests_total") {
		t.Error("chat counter missing from scrape output")
	}
}
