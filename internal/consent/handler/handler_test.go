package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentbroker/internal/consent/handler/mocks"
	"consentbroker/internal/consent/models"
	"consentbroker/internal/platform/middleware"
	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
)

const (
	seekerIDStr = "550e8400-e29b-41d4-a716-446655440000"
	ownerIDStr  = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	itemIDStr   = "7c9e6679-7425-40de-944b-e07fc1f97599"
	consentStr  = "a3bb189e-8bf9-3888-9912-ace4e6543002"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	handler *Handler

	seekerID  id.RequesterID
	ownerID   id.OwnerID
	itemID    id.ItemID
	consentID id.ConsentID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.handler = New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var err error
	s.seekerID, err = id.ParseRequesterID(seekerIDStr)
	s.Require().NoError(err)
	s.ownerID, err = id.ParseOwnerID(ownerIDStr)
	s.Require().NoError(err)
	s.itemID, err = id.ParseItemID(itemIDStr)
	s.Require().NoError(err)
	s.consentID, err = id.ParseConsentID(consentStr)
	s.Require().NoError(err)
}

// serve routes req through the registered routes as principal p.
func (s *HandlerSuite) serve(p *middleware.Principal, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p != nil {
				r = r.WithContext(middleware.WithPrincipal(r.Context(), *p))
			}
			next.ServeHTTP(w, r)
		})
	})
	s.handler.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) seeker() *middleware.Principal {
	return &middleware.Principal{EntityID: seekerIDStr, Role: models.RoleSeeker}
}

func (s *HandlerSuite) provider() *middleware.Principal {
	return &middleware.Principal{EntityID: ownerIDStr, Role: models.RoleProvider}
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.NewDecoder(w.Body).Decode(out))
}

func (s *HandlerSuite) assertError(w *httptest.ResponseRecorder, status int, code string) {
	s.Equal(status, w.Code)
	var body map[string]string
	s.decode(w, &body)
	s.Equal(code, body["error"])
}

func jsonRequest(method, target string, body any) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (s *HandlerSuite) TestAccessStatusFollowsVerdict() {
	validUntil := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		result  *models.AccessResult
		status  int
		payload bool
	}{
		{
			name: "grant answers 200 with payload",
			result: &models.AccessResult{
				ConsentID: s.consentID, Verdict: models.VerdictGranted, Status: models.StatusApproved,
				ItemID: s.itemID, ItemName: "passport", DeliveryMode: models.DeliveryInline,
				AccessCount: 3, ValidUntil: validUntil,
				Payload: &models.Payload{EncryptedData: "c2VjcmV0", ReleasedKey: "k", IV: "iv"},
			},
			status:  http.StatusOK,
			payload: true,
		},
		{
			name: "pending answers 202",
			result: &models.AccessResult{
				ConsentID: s.consentID, Verdict: models.VerdictPending, Status: models.StatusPending,
				ItemID: s.itemID, ItemName: "passport", ValidUntil: models.UnboundedValidity,
			},
			status: http.StatusAccepted,
		},
		{
			name: "denial answers 403",
			result: &models.AccessResult{
				ConsentID: s.consentID, Verdict: models.VerdictDenied, Status: models.StatusRevoked,
				ItemID: s.itemID, ItemName: "passport",
			},
			status: http.StatusForbidden,
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().AttemptAccess(gomock.Any(), s.seekerID, s.itemID).Return(tc.result, nil)

			w := s.serve(s.seeker(), httptest.NewRequest(http.MethodPost, "/seeker/items/"+itemIDStr+"/access", nil))

			s.Equal(tc.status, w.Code)
			var body AccessResponse
			s.decode(w, &body)
			s.Equal(string(tc.result.Verdict), body.Verdict)
			s.Equal(string(tc.result.Status), body.Status)
			s.Equal(consentStr, body.ConsentID)
			if tc.payload {
				s.Equal("c2VjcmV0", body.EncryptedData)
				s.Equal("k", body.ReleasedKey)
				s.Require().NotNil(body.ValidUntil)
				s.True(body.ValidUntil.Equal(validUntil))
			} else {
				s.Empty(body.EncryptedData)
				s.Empty(body.ReleasedKey)
				s.Nil(body.ValidUntil)
			}
		})
	}
}

func (s *HandlerSuite) TestAccessRejectsBadInput() {
	s.Run("malformed item id returns 400", func() {
		w := s.serve(s.seeker(), httptest.NewRequest(http.MethodPost, "/seeker/items/not-a-uuid/access", nil))
		s.assertError(w, http.StatusBadRequest, "bad_request")
	})

	s.Run("non-uuid principal returns 401", func() {
		p := &middleware.Principal{EntityID: "alice", Role: models.RoleSeeker}
		w := s.serve(p, httptest.NewRequest(http.MethodPost, "/seeker/items/"+itemIDStr+"/access", nil))
		s.assertError(w, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("provider on a seeker route returns 403", func() {
		w := s.serve(s.provider(), httptest.NewRequest(http.MethodPost, "/seeker/items/"+itemIDStr+"/access", nil))
		s.assertError(w, http.StatusForbidden, "forbidden")
	})

	s.Run("missing principal returns 500 from the handler", func() {
		req := httptest.NewRequest(http.MethodPost, "/seeker/items/"+itemIDStr+"/access", nil)
		w := httptest.NewRecorder()
		s.handler.HandleAccess(w, req)
		s.assertError(w, http.StatusInternalServerError, "internal_error")
	})
}

func (s *HandlerSuite) TestAccessErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "item not found"), http.StatusNotFound, "not_found"},
		{"conflict", dErrors.New(dErrors.CodeConflict, "concurrent update"), http.StatusConflict, "conflict"},
		{"timeout", dErrors.New(dErrors.CodeTimeout, "deadline"), http.StatusGatewayTimeout, "timeout"},
		{"unavailable", dErrors.New(dErrors.CodeUnavailable, "store down"), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().AttemptAccess(gomock.Any(), s.seekerID, s.itemID).Return(nil, tc.err)

			w := s.serve(s.seeker(), httptest.NewRequest(http.MethodPost, "/seeker/items/"+itemIDStr+"/access", nil))

			if tc.code == "unavailable" {
				s.Equal("1", w.Header().Get("Retry-After"))
			}
			s.assertError(w, tc.status, tc.code)
		})
	}
}

func (s *HandlerSuite) TestReRequest() {
	s.Run("re-request answers 202", func() {
		s.service.EXPECT().ReRequest(gomock.Any(), s.seekerID, s.itemID).Return(&models.AccessResult{
			ConsentID: s.consentID, Verdict: models.VerdictPending, Status: models.StatusPending, ItemID: s.itemID,
		}, nil)

		w := s.serve(s.seeker(), httptest.NewRequest(http.MethodPost, "/seeker/items/"+itemIDStr+"/rerequest", nil))

		s.Equal(http.StatusAccepted, w.Code)
		var body AccessResponse
		s.decode(w, &body)
		s.Equal("pending", body.Status)
	})

	s.Run("invalid transition returns 409", func() {
		s.service.EXPECT().ReRequest(gomock.Any(), s.seekerID, s.itemID).
			Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "consent is pending"))

		w := s.serve(s.seeker(), httptest.NewRequest(http.MethodPost, "/seeker/items/"+itemIDStr+"/rerequest", nil))

		s.assertError(w, http.StatusConflict, "invalid_transition")
	})
}

func (s *HandlerSuite) TestContent() {
	s.Run("grant streams bytes with key headers", func() {
		s.service.EXPECT().Retrieve(gomock.Any(), s.seekerID, s.itemID).Return(&models.RetrievalResult{
			ConsentID: s.consentID, Verdict: models.VerdictGranted, Status: models.StatusApproved,
			RemainingCount: 2, Content: []byte("ciphertext"), ReleasedKey: "wrapped", IV: "nonce",
		}, nil)

		w := s.serve(s.seeker(), httptest.NewRequest(http.MethodGet, "/seeker/items/"+itemIDStr+"/content", nil))

		s.Equal(http.StatusOK, w.Code)
		s.Equal("application/octet-stream", w.Header().Get("Content-Type"))
		s.Equal(consentStr, w.Header().Get(HeaderConsentID))
		s.Equal("2", w.Header().Get(HeaderRemainingCount))
		s.Equal("wrapped", w.Header().Get(HeaderReleasedKey))
		s.Equal("nonce", w.Header().Get(HeaderIV))
		s.Equal("ciphertext", w.Body.String())
	})

	s.Run("pending answers 202 as JSON", func() {
		s.service.EXPECT().Retrieve(gomock.Any(), s.seekerID, s.itemID).Return(&models.RetrievalResult{
			ConsentID: s.consentID, Verdict: models.VerdictPending, Status: models.StatusPending,
		}, nil)

		w := s.serve(s.seeker(), httptest.NewRequest(http.MethodGet, "/seeker/items/"+itemIDStr+"/content", nil))

		s.Equal(http.StatusAccepted, w.Code)
		s.Empty(w.Header().Get(HeaderReleasedKey))
		var body RetrievalResponse
		s.decode(w, &body)
		s.Equal("pending", body.Verdict)
	})

	s.Run("upstream outage returns 503", func() {
		s.service.EXPECT().Retrieve(gomock.Any(), s.seekerID, s.itemID).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "blob store unavailable"))

		w := s.serve(s.seeker(), httptest.NewRequest(http.MethodGet, "/seeker/items/"+itemIDStr+"/content", nil))

		s.assertError(w, http.StatusServiceUnavailable, "unavailable")
	})
}

func (s *HandlerSuite) TestSeekerHistory() {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.service.EXPECT().HistoryForRequester(gomock.Any(), s.seekerID).Return([]models.HistoryEntry{
		{
			ConsentID: s.consentID, ItemName: "passport", CounterpartName: "Olivia",
			Actor: ownerIDStr, Action: models.ActionApprove,
			PreviousStatus: models.StatusPending.Ptr(), NewStatus: models.StatusApproved, Timestamp: ts,
		},
	}, nil)

	w := s.serve(s.seeker(), httptest.NewRequest(http.MethodGet, "/seeker/history", nil))

	s.Equal(http.StatusOK, w.Code)
	var body HistoryResponse
	s.decode(w, &body)
	s.Require().Len(body.Entries, 1)
	s.Equal("approve", body.Entries[0].Action)
	s.Equal("pending", body.Entries[0].PreviousStatus)
	s.Equal("approved", body.Entries[0].Status)
	s.Equal("Olivia", body.Entries[0].Counterpart)
}

func (s *HandlerSuite) TestProviderHistoryEmptyIsList() {
	s.service.EXPECT().HistoryForOwner(gomock.Any(), s.ownerID).Return(nil, nil)

	w := s.serve(s.provider(), httptest.NewRequest(http.MethodGet, "/provider/history", nil))

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"entries":[]}`, w.Body.String())
}

func (s *HandlerSuite) TestPending() {
	requestedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.service.EXPECT().ListPendingForOwner(gomock.Any(), s.ownerID).Return([]models.PendingConsent{
		{
			ConsentID: s.consentID, ItemID: s.itemID, ItemName: "passport",
			RequesterID: s.seekerID, RequesterName: "Sam", RequesterEmail: "sam@example.com",
			RequestedAt: requestedAt,
		},
	}, nil)

	w := s.serve(s.provider(), httptest.NewRequest(http.MethodGet, "/provider/consents/pending", nil))

	s.Equal(http.StatusOK, w.Code)
	var body PendingResponse
	s.decode(w, &body)
	s.Require().Len(body.Pending, 1)
	s.Equal(seekerIDStr, body.Pending[0].RequesterID)
	s.Equal("sam@example.com", body.Pending[0].RequesterEmail)
}

func (s *HandlerSuite) TestDecision() {
	target := "/provider/consents/" + consentStr + "/decision"

	s.Run("approve passes parameters through", func() {
		count := 3
		validUntil := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
		s.service.EXPECT().Decide(gomock.Any(), s.ownerID, s.consentID, gomock.Any()).
			DoAndReturn(func(_ any, _ id.OwnerID, _ id.ConsentID, p models.DecideParams) (*models.DecideResult, error) {
				s.Equal(models.DecisionApprove, p.Decision)
				s.Equal(3, p.Count)
				s.Require().NotNil(p.ValidUntil)
				s.True(p.ValidUntil.Equal(validUntil))
				s.Equal("wrapped-key", p.ReleasedKey)
				return &models.DecideResult{
					ConsentID: s.consentID, Status: models.StatusApproved, AccessCount: 3, ValidUntil: validUntil,
				}, nil
			})

		w := s.serve(s.provider(), jsonRequest(http.MethodPost, target, DecisionRequest{
			Decision: " Approve ", AccessCount: &count, ValidUntil: &validUntil, ReleasedKey: "wrapped-key",
		}))

		s.Equal(http.StatusOK, w.Code)
		var body DecisionResponse
		s.decode(w, &body)
		s.Equal("approved", body.Status)
		s.Equal(3, body.AccessCount)
	})

	s.Run("approve without count returns 400", func() {
		w := s.serve(s.provider(), jsonRequest(http.MethodPost, target, map[string]any{"decision": "approve"}))
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("count below one returns 400", func() {
		w := s.serve(s.provider(), jsonRequest(http.MethodPost, target, map[string]any{"decision": "approve", "access_count": 0}))
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("reject with approval fields returns 400", func() {
		w := s.serve(s.provider(), jsonRequest(http.MethodPost, target, map[string]any{"decision": "reject", "access_count": 2}))
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown decision returns 400", func() {
		w := s.serve(s.provider(), jsonRequest(http.MethodPost, target, map[string]any{"decision": "maybe"}))
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown field returns 400", func() {
		w := s.serve(s.provider(), jsonRequest(http.MethodPost, target, map[string]any{"decision": "revoke", "reason": "x"}))
		s.assertError(w, http.StatusBadRequest, "bad_request")
	})

	s.Run("non-json content type returns 415", func() {
		req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString("decision=revoke"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := s.serve(s.provider(), req)
		s.Equal(http.StatusUnsupportedMediaType, w.Code)
	})

	s.Run("malformed consent id returns 400", func() {
		w := s.serve(s.provider(), jsonRequest(http.MethodPost, "/provider/consents/nope/decision", map[string]any{"decision": "revoke"}))
		s.assertError(w, http.StatusBadRequest, "bad_request")
	})

	s.Run("foreign consent returns 403", func() {
		s.service.EXPECT().Decide(gomock.Any(), s.ownerID, s.consentID, models.DecideParams{Decision: models.DecisionRevoke}).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "consent belongs to another owner"))

		w := s.serve(s.provider(), jsonRequest(http.MethodPost, target, map[string]any{"decision": "revoke"}))

		s.assertError(w, http.StatusForbidden, "forbidden")
	})

	s.Run("seeker cannot decide", func() {
		w := s.serve(s.seeker(), jsonRequest(http.MethodPost, target, map[string]any{"decision": "revoke"}))
		s.assertError(w, http.StatusForbidden, "forbidden")
	})
}

func TestDecisionRequestValidate(t *testing.T) {
	count := 2
	tooMany := 1 << 30
	cases := []struct {
		name    string
		req     *DecisionRequest
		wantErr bool
	}{
		{"nil", nil, true},
		{"revoke bare", &DecisionRequest{Decision: "revoke"}, false},
		{"approve with count", &DecisionRequest{Decision: "approve", AccessCount: &count}, false},
		{"approve over max count", &DecisionRequest{Decision: "approve", AccessCount: &tooMany}, true},
		{"reject with key", &DecisionRequest{Decision: "reject", ReleasedKey: "k"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
