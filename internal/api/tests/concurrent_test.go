package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/rongwang/savings-circles/internal/api/testutils"
	"github.com/rongwang/savings-circles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentCircleCommands(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	const numMembers = 8
	members := []testutils.TestUser{{ID: testCtx.TestUserID, JWT: testCtx.TestUserJWT}}
	c := createCircle(t, testCtx, testCtx.TestUserJWT, models.CreateCircleRequest{Name: "Busy", AmountPerMember: 1000})
	for i := 0; i < numMembers; i++ {
		u := testCtx.CreateUser(t, fmt.Sprintf("Member %d", i), fmt.Sprintf("member%d@example.com", i), "password123")
		addActiveMember(t, testCtx, testCtx.TestUserJWT, c.ID, u.ID)
		members = append(members, u)
	}

	t.Run("TestConcurrentContributionsAreExclusive", func(t *testing.T) {
		const attemptsPerMember = 5

		codes := make(chan int, len(members)*attemptsPerMember)
		var wg sync.WaitGroup

		for _, m := range members {
			for j := 0; j < attemptsPerMember; j++ {
				wg.Add(1)
				go func(token string) {
					defer wg.Done()

					w := testutils.PerformRequest(
						testCtx.Router,
						http.MethodPost,
						fmt.Sprintf("/api/circles/%s/contributions", c.ID),
						nil,
						testutils.AuthHeaders(token),
					)
					codes <- w.Code
				}(m.JWT)
			}
		}

		wg.Wait()
		close(codes)

		created, conflicts := 0, 0
		for code := range codes {
			switch code {
			case http.StatusCreated:
				created++
			case http.StatusConflict:
				conflicts++
			default:
				t.Errorf("unexpected status %d", code)
			}
		}

		assert.Equal(t, len(members), created, "exactly one contribution per member")
		assert.Equal(t, len(members)*(attemptsPerMember-1), conflicts)
	})

	t.Run("TestConcurrentApprovalsCommitOnce", func(t *testing.T) {
		newAmount := int64(1250)
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			fmt.Sprintf("/api/circles/%s/propose-amount", c.ID),
			models.ProposeAmountRequest{NewAmount: &newAmount},
			testutils.AuthHeaders(testCtx.TestUserJWT),
		)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		responses := make(chan models.AmountApprovalResponse, len(members)*2)
		var wg sync.WaitGroup

		// each member votes twice at once; duplicates must never count
		for _, m := range members {
			for j := 0; j < 2; j++ {
				wg.Add(1)
				go func(token string) {
					defer wg.Done()

					w := testutils.PerformRequest(
						testCtx.Router,
						http.MethodPost,
						fmt.Sprintf("/api/circles/%s/approve-amount", c.ID),
						nil,
						testutils.AuthHeaders(token),
					)
					if w.Code != http.StatusOK {
						assert.Equal(t, http.StatusConflict, w.Code)
						return
					}

					var resp models.AmountApprovalResponse
					if assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)) {
						responses <- resp
					}
				}(m.JWT)
			}
		}

		wg.Wait()
		close(responses)

		accepted, commits := 0, 0
		for resp := range responses {
			accepted++
			if resp.Committed {
				commits++
				assert.Equal(t, newAmount, resp.AmountPerMember)
			}
		}

		assert.Equal(t, len(members), accepted, "one accepted vote per approver")
		assert.Equal(t, 1, commits, "the change commits exactly once")

		view := getCircle(t, testCtx, testCtx.TestUserJWT, c.ID)
		assert.Equal(t, newAmount, view.AmountPerMember)
		assert.Zero(t, view.ProposedAmount)
	})

	t.Run("TestConcurrentProposalsAdmitOne", func(t *testing.T) {
		const numProposals = 10

		codes := make(chan int, numProposals)
		var wg sync.WaitGroup

		for i := 0; i < numProposals; i++ {
			wg.Add(1)
			go func(amount int64) {
				defer wg.Done()

				w := testutils.PerformRequest(
					testCtx.Router,
					http.MethodPost,
					fmt.Sprintf("/api/circles/%s/propose-amount", c.ID),
					models.ProposeAmountRequest{NewAmount: &amount},
					testutils.AuthHeaders(testCtx.TestUserJWT),
				)
				codes <- w.Code
			}(int64(2000 + i))
		}

		wg.Wait()
		close(codes)

		accepted := 0
		for code := range codes {
			if code == http.StatusOK {
				accepted++
				continue
			}
			assert.Equal(t, http.StatusConflict, code)
		}
		assert.Equal(t, 1, accepted)
	})
}
