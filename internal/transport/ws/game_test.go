package ws

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"quadball/server/internal/apperr"
)

func TestMeasureRTTComputesElapsedDuration(t *testing.T) {
	sentAt := time.UnixMilli(1000)
	receivedAt := sentAt.Add(40 * time.Millisecond)
	if got := measureRTT(receivedAt, sentAt.UnixMilli()); got != 40*time.Millisecond {
		t.Fatalf("expected 40ms RTT, got %v", got)
	}
}

func TestMeasureRTTRejectsFutureDatedClientTime(t *testing.T) {
	receivedAt := time.UnixMilli(1000)
	farFuture := receivedAt.Add(10 * time.Second).UnixMilli()
	if got := measureRTT(receivedAt, farFuture); got != 0 {
		t.Fatalf("expected 0 for a clock-skewed future timestamp, got %v", got)
	}
}

func TestMeasureRTTTreatsMissingSentAtAsZero(t *testing.T) {
	if got := measureRTT(time.Now(), 0); got != 0 {
		t.Fatalf("expected 0 RTT when the client sent no timestamp, got %v", got)
	}
}

func TestStatusForErrorMapsKinds(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindAuthorization, http.StatusUnauthorized},
		{apperr.KindProtocol, http.StatusBadRequest},
		{apperr.KindTransientIO, http.StatusServiceUnavailable},
		{apperr.KindFatal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		err := apperr.New(c.kind, errors.New("boom"))
		if got := statusForError(err); got != c.want {
			t.Errorf("kind %s: expected %d, got %d", c.kind, c.want, got)
		}
	}
}

func TestStatusForErrorDefaultsUnauthorizedForUnkindedError(t *testing.T) {
	if got := statusForError(errors.New("plain")); got != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unkinded error, got %d", got)
	}
}
