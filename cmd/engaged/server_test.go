package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/outreachkit/engage"
	"github.com/outreachkit/engage/fixtures"
	"github.com/outreachkit/engage/persistence/memorypersistence"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("type server", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		handler http.Handler
	)

	request := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		return w
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)

		e := engage.New(
			engage.WithDefinition(fixtures.NewDefinition()),
			engage.WithPersistence(&memorypersistence.Provider{}),
			engage.WithLogger(logging.DiscardLogger{}),
		)

		go e.Run(ctx)

		handler = newHandler(e, 100, logging.DiscardLogger{})
	})

	AfterEach(func() {
		cancel()
	})

	Describe("POST /alerts", func() {
		It("starts an engagement when usage exceeds the threshold", func() {
			w := request(
				http.MethodPost,
				"/alerts",
				`{
					"account_id": "<account>",
					"event_id": "<event>",
					"metric_type": "api_calls",
					"current_usage": 150,
					"automation_level": "full_automation"
				}`,
			)

			Expect(w.Code).To(Equal(http.StatusAccepted))

			var resp alertResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Started).To(BeTrue())
			Expect(resp.InstanceID).NotTo(BeEmpty())
		})

		It("ignores an alert below the threshold", func() {
			w := request(
				http.MethodPost,
				"/alerts",
				`{
					"account_id": "<account>",
					"event_id": "<event>",
					"current_usage": 50
				}`,
			)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp alertResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Started).To(BeFalse())
			Expect(resp.Reason).To(Equal("usage below threshold"))
		})

		It("honors a per-alert threshold override", func() {
			w := request(
				http.MethodPost,
				"/alerts",
				`{
					"account_id": "<account>",
					"event_id": "<event>",
					"current_usage": 50,
					"threshold": 40
				}`,
			)

			Expect(w.Code).To(Equal(http.StatusAccepted))
		})

		It("returns the same instance for a duplicate alert", func() {
			w1 := request(
				http.MethodPost,
				"/alerts",
				`{"account_id": "<account>", "event_id": "<event>", "current_usage": 150}`,
			)
			w2 := request(
				http.MethodPost,
				"/alerts",
				`{"account_id": "<account>", "event_id": "<event>", "current_usage": 150}`,
			)

			var resp1, resp2 alertResponse
			Expect(json.Unmarshal(w1.Body.Bytes(), &resp1)).To(Succeed())
			Expect(json.Unmarshal(w2.Body.Bytes(), &resp2)).To(Succeed())
			Expect(resp2.InstanceID).To(Equal(resp1.InstanceID))
		})

		It("rejects an alert without an account ID", func() {
			w := request(
				http.MethodPost,
				"/alerts",
				`{"event_id": "<event>", "current_usage": 150}`,
			)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unrecognized automation level", func() {
			w := request(
				http.MethodPost,
				"/alerts",
				`{
					"account_id": "<account>",
					"event_id": "<event>",
					"current_usage": 150,
					"automation_level": "<invalid>"
				}`,
			)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a malformed body", func() {
			w := request(http.MethodPost, "/alerts", `{`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /replies", func() {
		It("rejects a reply when no engagement is waiting for it", func() {
			w := request(
				http.MethodPost,
				"/replies",
				`{"account_id": "<account>", "event_id": "<event>", "message": "yes"}`,
			)

			Expect(w.Code).To(Equal(http.StatusConflict))

			var resp replyResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Accepted).To(BeFalse())
		})

		It("accepts a reply for a suspended engagement", func() {
			w := request(
				http.MethodPost,
				"/alerts",
				`{
					"account_id": "<account>",
					"event_id": "<event>",
					"current_usage": 150,
					"automation_level": "hybrid"
				}`,
			)
			Expect(w.Code).To(Equal(http.StatusAccepted))

			Eventually(func() int {
				w := request(
					http.MethodPost,
					"/replies",
					`{"account_id": "<account>", "event_id": "<event>", "message": "yes"}`,
				)
				return w.Code
			}).Should(Equal(http.StatusAccepted))
		})
	})

	Describe("GET /instances/{id}", func() {
		It("returns the terminal state of an engagement", func() {
			w := request(
				http.MethodPost,
				"/alerts",
				`{
					"account_id": "<account>",
					"event_id": "<event>",
					"current_usage": 150,
					"automation_level": "full_automation"
				}`,
			)
			Expect(w.Code).To(Equal(http.StatusAccepted))

			var started alertResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &started)).To(Succeed())

			w = request(
				http.MethodGet,
				"/instances/"+started.InstanceID+"?wait=true",
				"",
			)
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp instanceResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Status).To(Equal("completed"))
			Expect(resp.BusinessKey).To(Equal("<account>-<event>"))
			Expect(resp.History).NotTo(BeEmpty())
			Expect(resp.Result).NotTo(BeEmpty())
		})

		It("returns 404 for an unknown instance", func() {
			w := request(http.MethodGet, "/instances/<unknown>", "")
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 405 for a non-GET request", func() {
			w := request(http.MethodPost, "/instances/<id>", "")
			Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
		})
	})
})
