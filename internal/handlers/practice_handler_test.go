package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkquest/internal/models"
	"talkquest/internal/service"
)

func TestPracticeFlow(t *testing.T) {
	srv := newTestServer(t)
	srv.sync(t, childIdentity)
	srv.sync(t, parentIdentity)

	rec := srv.do(t, http.MethodPost, "/api/practice/assignments", &therapistIdentity, map[string]interface{}{
		"childId": "child-1", "type": "sentence", "text": "The rabbit runs fast",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sentence := decodeBody[models.PracticeAssignment](t, rec)
	assert.Equal(t, models.PracticeActive, sentence.Status)

	rec = srv.do(t, http.MethodPost, "/api/practice/assignments", &therapistIdentity, map[string]interface{}{
		"childId": "child-1", "type": "word", "text": "rabbit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	word := decodeBody[models.PracticeAssignment](t, rec)

	rec = srv.do(t, http.MethodPost, "/api/practice/assignments", &parentIdentity, map[string]interface{}{
		"childId": "child-1", "type": "word", "text": "rabbit",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, "only therapists assign practice")

	rec = srv.do(t, http.MethodPost, "/api/practice/assignments", &therapistIdentity, map[string]interface{}{
		"childId": "child-1", "type": "song", "text": "la",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	attemptPath := "/api/practice/assignments/" + sentence.ID + "/attempts"
	rec = srv.do(t, http.MethodPost, attemptPath, &childIdentity, map[string]interface{}{
		"score": 0.8, "predictedText": "the rabbit runs fast",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeBody[service.AttemptResult](t, rec)
	assert.Equal(t, models.PracticeAttempted, result.Assignment.Status)
	require.NotNil(t, result.Assignment.LatestScore)
	assert.InDelta(t, 0.8, *result.Assignment.LatestScore, 1e-9)

	rec = srv.do(t, http.MethodPost, attemptPath, &otherChild, map[string]interface{}{"predictedText": "rabbit"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, attemptPath, &therapistIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.PracticeAttempt](t, rec), 1)

	rec = srv.do(t, http.MethodPost, "/api/practice/assignments/"+sentence.ID+"/complete", &childIdentity, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "sentences have no terminal state")

	rec = srv.do(t, http.MethodPost, "/api/practice/assignments/"+word.ID+"/complete", &therapistIdentity, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/practice/assignments/"+word.ID+"/complete", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PracticeCompleted, decodeBody[models.PracticeAssignment](t, rec).Status)

	rec = srv.do(t, http.MethodGet, "/api/practice/assignments", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody[[]models.PracticeAssignment](t, rec)
	require.Len(t, listed, 2)

	rec = srv.do(t, http.MethodGet, "/api/practice/assignments?childId=child-1", &parentIdentity, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "linked parent may view")

	rec = srv.do(t, http.MethodGet, "/api/practice/assignments?childId=child-1", &otherChild, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/practice/assigned", &therapistIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.PracticeAssignment](t, rec), 2)

	rec = srv.do(t, http.MethodPost, "/api/practice/assignments/missing/complete", &childIdentity, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
