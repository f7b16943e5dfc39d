package api_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rongwang/savings-circles/internal/api/testutils"
	"github.com/rongwang/savings-circles/internal/models"
	"github.com/stretchr/testify/require"
)

func createCircle(t *testing.T, testCtx *testutils.TestContext, token string, req models.CreateCircleRequest) models.CircleResponse {
	t.Helper()

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/circles", req, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.CircleResponse
	testutils.DecodeJSON(t, w, &resp)
	return resp
}

// addActiveMember invites user into circleID and approves them as admin
func addActiveMember(t *testing.T, testCtx *testutils.TestContext, adminToken, circleID, userID string) {
	t.Helper()

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/circles/%s/members", circleID),
		models.AddMemberRequest{UserID: userID, Role: models.RoleMember},
		testutils.AuthHeaders(adminToken),
	)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/circles/%s/approve/%s", circleID, userID),
		nil,
		testutils.AuthHeaders(adminToken),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func getCircle(t *testing.T, testCtx *testutils.TestContext, token, circleID string) models.CircleResponse {
	t.Helper()

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/circles/%s", circleID),
		nil,
		testutils.AuthHeaders(token),
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.CircleResponse
	testutils.DecodeJSON(t, w, &resp)
	return resp
}

// assertError checks the status and code of an error response
func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	require.Equal(t, status, w.Code, w.Body.String())

	var resp models.ErrorResponse
	testutils.DecodeJSON(t, w, &resp)
	require.Equal(t, code, resp.Code)
	require.NotEmpty(t, resp.Error)
}
