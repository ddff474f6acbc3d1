package speaker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
)

func TestListSpeakers(t *testing.T) {
	r := chi.NewRouter()
	New(speaker.NewMemoryStore(speaker.Seed())).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speakers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []speaker.Speaker
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, len(speaker.Seed()))
	assert.Equal(t, "Elon Musk", got[0].Name)
	require.NotNil(t, got[0].Temperature)
	assert.InDelta(t, 0.8, *got[0].Temperature, 1e-9)
}
