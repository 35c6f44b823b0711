package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	recorder := New()
	recorder.VoteCast(entities.VoteChoiceInFavor)
	recorder.VoteCast(entities.VoteChoiceInFavor)
	recorder.VoteRejected("duplicate_vote")
	recorder.VotingItemClosed(true)
	recorder.DelegationCreated()

	require.Equal(t, 2.0, testutil.ToFloat64(recorder.votesCast.WithLabelValues("in_favor")))
	require.Equal(t, 1.0, testutil.ToFloat64(recorder.votesRejected.WithLabelValues("duplicate_vote")))
	require.Equal(t, 1.0, testutil.ToFloat64(recorder.itemsClosed.WithLabelValues("true")))
	require.Equal(t, 1.0, testutil.ToFloat64(recorder.delegationsCreated))
}

func TestRecorderHandlerExposesMetrics(t *testing.T) {
	recorder := New()
	recorder.ObserveHTTP(http.MethodPost, "/api/v1/items/{itemID}/votes", http.StatusCreated, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "bureausocial_http_request_duration_seconds"))
	require.True(t, strings.Contains(body, "go_goroutines"))
}
