package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/rongwang/savings-circles/internal/api/testutils"
	"github.com/rongwang/savings-circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCircle(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Test case 1: amount omitted uses the configured default
	resp := createCircle(t, testCtx, testCtx.TestUserJWT, models.CreateCircleRequest{
		Name:        "Family Savings",
		Description: "monthly pot",
	})

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Family Savings", resp.Name)
	assert.Equal(t, int64(1000), resp.AmountPerMember)
	assert.Zero(t, resp.ProposedAmount)
	assert.True(t, resp.IsAdmin)
	assert.Equal(t, testCtx.TestUserID, resp.CreatorID)
	require.Len(t, resp.Members, 1)
	assert.Equal(t, models.MemberResponse{
		ID:     testCtx.TestUserID,
		Email:  testutils.TestUserEmail,
		Name:   "Test User",
		Role:   models.RoleAdmin,
		Status: models.StatusActive,
	}, resp.Members[0])

	// Test case 2: explicit amount
	resp = createCircle(t, testCtx, testCtx.TestUserJWT, models.CreateCircleRequest{
		Name:            "Holiday",
		AmountPerMember: 2500,
	})
	assert.Equal(t, int64(2500), resp.AmountPerMember)

	// Test case 3: negative amount
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/circles",
		models.CreateCircleRequest{Name: "Broke", AmountPerMember: -10},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assertError(t, w, http.StatusUnprocessableEntity, "INVALID_AMOUNT")

	// Test case 4: missing name
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/circles",
		map[string]interface{}{"description": "no name"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assertError(t, w, http.StatusBadRequest, "VALIDATION_ERROR")

	// Test case 5: unauthenticated
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/circles",
		models.CreateCircleRequest{Name: "Anon"},
		nil,
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListAndGetCircles(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	member := testCtx.CreateUser(t, "Member", "member@example.com", "password123")
	outsider := testCtx.CreateUser(t, "Outsider", "outsider@example.com", "password123")

	first := createCircle(t, testCtx, testCtx.TestUserJWT, models.CreateCircleRequest{Name: "First"})
	second := createCircle(t, testCtx, testCtx.TestUserJWT, models.CreateCircleRequest{Name: "Second"})
	addActiveMember(t, testCtx, testCtx.TestUserJWT, second.ID, member.ID)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/circles", nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code)

	var circles []models.CircleResponse
	testutils.DecodeJSON(t, w, &circles)
	ids := []string{}
	for _, c := range circles {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/circles", nil, testutils.AuthHeaders(member.JWT))
	require.Equal(t, http.StatusOK, w.Code)
	testutils.DecodeJSON(t, w, &circles)
	require.Len(t, circles, 1)
	assert.Equal(t, second.ID, circles[0].ID)
	assert.False(t, circles[0].IsAdmin)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/circles", nil, testutils.AuthHeaders(outsider.JWT))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	view := getCircle(t, testCtx, member.JWT, second.ID)
	assert.Len(t, view.Members, 2)
	assert.Nil(t, view.PendingApprovals)

	// Outsiders and unknown ids look the same
	for _, id := range []string{first.ID, "00000000-0000-0000-0000-000000000000"} {
		w = testutils.PerformRequest(
			testCtx.Router,
			http.MethodGet,
			fmt.Sprintf("/api/circles/%s", id),
			nil,
			testutils.AuthHeaders(outsider.JWT),
		)
		assertError(t, w, http.StatusNotFound, "NOT_FOUND")
	}
}

func TestMembership(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	bob := testCtx.CreateUser(t, "Bob", "bob@example.com", "password123")
	carol := testCtx.CreateUser(t, "Carol", "carol@example.com", "password123")

	c := createCircle(t, testCtx, testCtx.TestUserJWT, models.CreateCircleRequest{Name: "Club"})
	membersPath := fmt.Sprintf("/api/circles/%s/members", c.ID)
	approvePath := func(userID string) string {
		return fmt.Sprintf("/api/circles/%s/approve/%s", c.ID, userID)
	}

	// Invite creates a pending membership
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		membersPath,
		models.AddMemberRequest{UserID: bob.ID, Role: models.RoleMember},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var member models.MemberResponse
	testutils.DecodeJSON(t, w, &member)
	assert.Equal(t, models.MemberResponse{
		ID:     bob.ID,
		Email:  "bob@example.com",
		Name:   "Bob",
		Role:   models.RoleMember,
		Status: models.StatusPending,
	}, member)

	view := getCircle(t, testCtx, testCtx.TestUserJWT, c.ID)
	assert.Equal(t, []string{bob.ID}, view.PendingApprovals)

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name   string
			token  string
			body   interface{}
			status int
			code   string
		}{
			{"already member", testCtx.TestUserJWT, models.AddMemberRequest{UserID: bob.ID}, http.StatusConflict, "ALREADY_MEMBER"},
			{"unknown user", testCtx.TestUserJWT, models.AddMemberRequest{UserID: "ghost"}, http.StatusNotFound, "USER_NOT_FOUND"},
			{"second admin", testCtx.TestUserJWT, models.AddMemberRequest{UserID: carol.ID, Role: models.RoleAdmin}, http.StatusUnprocessableEntity, "INVALID_ROLE"},
			{"pending member invites", bob.JWT, models.AddMemberRequest{UserID: carol.ID}, http.StatusForbidden, "FORBIDDEN"},
			{"outsider invites", carol.JWT, models.AddMemberRequest{UserID: carol.ID}, http.StatusForbidden, "FORBIDDEN"},
			{"missing user id", testCtx.TestUserJWT, map[string]string{"role": "member"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := testutils.PerformRequest(testCtx.Router, http.MethodPost, membersPath, tt.body, testutils.AuthHeaders(tt.token))
				assertError(t, w, tt.status, tt.code)
			})
		}
	})

	// Pending members cannot contribute
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/circles/%s/contributions", c.ID),
		nil,
		testutils.AuthHeaders(bob.JWT),
	)
	assertError(t, w, http.StatusForbidden, "FORBIDDEN")

	// Only the admin approves
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, approvePath(bob.ID), nil, testutils.AuthHeaders(bob.JWT))
	assertError(t, w, http.StatusForbidden, "FORBIDDEN")

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, approvePath(bob.ID), nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutils.DecodeJSON(t, w, &member)
	assert.Equal(t, models.StatusActive, member.Status)

	// Approving twice or approving a non-member is rejected
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, approvePath(bob.ID), nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	assertError(t, w, http.StatusConflict, "INVALID_STATE")

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, approvePath(carol.ID), nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	assertError(t, w, http.StatusNotFound, "USER_NOT_FOUND")

	view = getCircle(t, testCtx, testCtx.TestUserJWT, c.ID)
	assert.Equal(t, []string{}, view.PendingApprovals, "the admin always gets the list")
	require.Len(t, view.Members, 2)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/circles/"+c.ID, nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Contains(t, w.Body.String(), `"pending_approvals":[]`)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/circles/"+c.ID, nil, testutils.AuthHeaders(bob.JWT))
	assert.Contains(t, w.Body.String(), `"pending_approvals":null`)
	assert.Equal(t, models.StatusActive, view.Members[1].Status)
}

func TestAutoApproveInvites(t *testing.T) {
	testCtx := testutils.SetupTestContext(t, testutils.WithAutoApproveInvites())
	bob := testCtx.CreateUser(t, "Bob", "bob@example.com", "password123")

	c := createCircle(t, testCtx, testCtx.TestUserJWT, models.CreateCircleRequest{Name: "Quick"})

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/circles/%s/members", c.ID),
		models.AddMemberRequest{UserID: bob.ID},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var member models.MemberResponse
	testutils.DecodeJSON(t, w, &member)
	assert.Equal(t, models.StatusActive, member.Status)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/circles/%s/contributions", c.ID),
		nil,
		testutils.AuthHeaders(bob.JWT),
	)
	assert.Equal(t, http.StatusCreated, w.Code)
}
