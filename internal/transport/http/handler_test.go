package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"district-exam-service/internal/app"
	"district-exam-service/internal/domain"
	"district-exam-service/internal/infra/memory"
)

var testBase = time.Date(2025, 8, 12, 10, 0, 0, 0, time.UTC)

func newTestMux(t *testing.T) (*http.ServeMux, *app.ExamService) {
	t.Helper()
	store := memory.NewStore()
	service := app.NewExamServiceWithClock(store, app.NewFeed(), func() time.Time { return testBase })
	mux := http.NewServeMux()
	NewHandler(service, nil, "secret").Register(mux)
	return mux, service
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func importActiveExam(t *testing.T, service *app.ExamService) int64 {
	t.Helper()
	examID, err := service.Import(context.Background(), domain.ExamImport{
		Title:            "Mock Test",
		StartTime:        testBase.Add(-time.Hour),
		EndTime:          testBase.Add(time.Hour),
		MarksPerQuestion: 2,
		Questions: []domain.QuestionImport{
			{Prompt: "capital?", Options: []string{"A", "B"}, CorrectAnswer: "A", Explanation: "it is A"},
			{Prompt: "river?", Options: []string{"A", "B"}, CorrectAnswer: "B", Explanation: "it is B"},
		},
	})
	if err != nil {
		t.Fatalf("import exam: %v", err)
	}
	return examID
}

func registerUser(t *testing.T, mux *http.ServeMux, name, district string) string {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/register", `{"name":"`+name+`","district":"`+district+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		UserID int64 `json:"userId"`
	}
	decodeBody(t, rec, &resp)
	return strconv.FormatInt(resp.UserID, 10)
}

func TestRegisterAndProfile(t *testing.T) {
	mux, _ := newTestMux(t)

	userID := registerUser(t, mux, "Alice", "North")

	rec := do(t, mux, http.MethodGet, "/me", "", map[string]string{"X-User-ID": userID})
	if rec.Code != http.StatusOK {
		t.Fatalf("me returned %d: %s", rec.Code, rec.Body.String())
	}
	var user domain.User
	decodeBody(t, rec, &user)
	if user.Name != "Alice" || user.District != "North" {
		t.Fatalf("unexpected profile %+v", user)
	}

	if rec := do(t, mux, http.MethodGet, "/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without header returned %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/me", "", map[string]string{"X-User-ID": "999"}); rec.Code != http.StatusNotFound {
		t.Fatalf("me for unknown user returned %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/register", `{"name":"","district":"North"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Field != "name" {
		t.Fatalf("expected field name, got %+v", body)
	}

	if rec := do(t, mux, http.MethodPost, "/register", `{`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON returned %d", rec.Code)
	}
}

func TestExamListingAndQuestions(t *testing.T) {
	mux, service := newTestMux(t)
	examID := importActiveExam(t, service)
	userID := registerUser(t, mux, "Alice", "North")

	rec := do(t, mux, http.MethodGet, "/exams", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list exams returned %d", rec.Code)
	}
	var exams []domain.ExamView
	decodeBody(t, rec, &exams)
	if len(exams) != 1 || exams[0].Status != domain.PhaseActive {
		t.Fatalf("unexpected exam list %+v", exams)
	}

	path := "/exams/" + strconv.FormatInt(examID, 10) + "/questions"
	rec = do(t, mux, http.MethodGet, path, "", map[string]string{"X-User-ID": userID})
	if rec.Code != http.StatusOK {
		t.Fatalf("questions returned %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "correctAnswer") {
		t.Fatalf("answer key leaked in response: %s", rec.Body.String())
	}
	var questions []domain.PublicQuestion
	decodeBody(t, rec, &questions)
	if len(questions) != 2 || len(questions[0].Options) != 2 {
		t.Fatalf("unexpected questions %+v", questions)
	}

	if rec := do(t, mux, http.MethodGet, "/exams/999", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown exam returned %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/exams/abc", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("non-numeric exam ID returned %d", rec.Code)
	}
}

func TestSubmitFlow(t *testing.T) {
	mux, service := newTestMux(t)
	examID := importActiveExam(t, service)
	userID := registerUser(t, mux, "Alice", "North")
	headers := map[string]string{"X-User-ID": userID}
	base := "/exams/" + strconv.FormatInt(examID, 10)

	rec := do(t, mux, http.MethodPost, base+"/submit", `{"answers":["A",null]}`, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit returned %d: %s", rec.Code, rec.Body.String())
	}
	var scored struct {
		Score float64 `json:"score"`
	}
	decodeBody(t, rec, &scored)
	if scored.Score != 2 {
		t.Fatalf("expected score 2, got %v", scored.Score)
	}

	// The window is still open, but the attempt is spent.
	if rec := do(t, mux, http.MethodPost, base+"/submit", `{"answers":["A","B"]}`, headers); rec.Code != http.StatusConflict {
		t.Fatalf("second submit returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, http.MethodGet, base+"/review", "", headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("review returned %d: %s", rec.Code, rec.Body.String())
	}
	var review domain.Review
	decodeBody(t, rec, &review)
	if review.Score != 2 || len(review.Questions) != 2 {
		t.Fatalf("unexpected review %+v", review)
	}
	if !review.Questions[0].Correct || review.Questions[1].Correct {
		t.Fatalf("unexpected correctness flags %+v", review.Questions)
	}
	if review.Questions[1].UserAnswer != "" {
		t.Fatalf("expected second question unanswered, got %+v", review.Questions[1])
	}

	rec = do(t, mux, http.MethodGet, base+"/leaderboard", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard returned %d", rec.Code)
	}
	var rows []domain.LeaderboardRow
	decodeBody(t, rec, &rows)
	if len(rows) != 1 || rows[0].Rank != 1 || rows[0].Name != "Alice" || rows[0].Score != 2 {
		t.Fatalf("unexpected leaderboard %+v", rows)
	}
}

func TestSubmitValidation(t *testing.T) {
	mux, service := newTestMux(t)
	examID := importActiveExam(t, service)
	userID := registerUser(t, mux, "Alice", "North")
	headers := map[string]string{"X-User-ID": userID}
	path := "/exams/" + strconv.FormatInt(examID, 10) + "/submit"

	rec := do(t, mux, http.MethodPost, path, `{"answers":"A"}`, headers)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-array answers returned %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Field != "answers" {
		t.Fatalf("expected field answers, got %+v", body)
	}

	if rec := do(t, mux, http.MethodPost, path, `{}`, headers); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing answers returned %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, path, `not json`, headers); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON returned %d", rec.Code)
	}
}

func TestSubmitNullAnswersDoesNotSpendAttempt(t *testing.T) {
	mux, service := newTestMux(t)
	examID := importActiveExam(t, service)
	userID := registerUser(t, mux, "Alice", "North")
	headers := map[string]string{"X-User-ID": userID}
	path := "/exams/" + strconv.FormatInt(examID, 10) + "/submit"

	rec := do(t, mux, http.MethodPost, path, `{"answers":null}`, headers)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("null answers returned %d: %s", rec.Code, rec.Body.String())
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Field != "answers" {
		t.Fatalf("expected field answers, got %+v", body)
	}

	// The rejection must leave the one-shot attempt unspent.
	rec = do(t, mux, http.MethodPost, path, `{"answers":["A","B"]}`, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit after null rejection returned %d: %s", rec.Code, rec.Body.String())
	}
	var scored struct {
		Score float64 `json:"score"`
	}
	decodeBody(t, rec, &scored)
	if scored.Score != 4 {
		t.Fatalf("expected score 4, got %v", scored.Score)
	}
}

func TestSubmitOutsideWindow(t *testing.T) {
	mux, service := newTestMux(t)
	userID := registerUser(t, mux, "Alice", "North")
	headers := map[string]string{"X-User-ID": userID}

	upcoming, err := service.Import(context.Background(), domain.ExamImport{
		Title:     "later",
		StartTime: testBase.Add(time.Hour),
		EndTime:   testBase.Add(2 * time.Hour),
		Questions: []domain.QuestionImport{{Prompt: "q", Options: []string{"A", "B"}, CorrectAnswer: "A"}},
	})
	if err != nil {
		t.Fatalf("import upcoming: %v", err)
	}
	ended, err := service.Import(context.Background(), domain.ExamImport{
		Title:     "done",
		StartTime: testBase.Add(-2 * time.Hour),
		EndTime:   testBase.Add(-time.Hour),
		Questions: []domain.QuestionImport{{Prompt: "q", Options: []string{"A", "B"}, CorrectAnswer: "A"}},
	})
	if err != nil {
		t.Fatalf("import ended: %v", err)
	}

	rec := do(t, mux, http.MethodPost, "/exams/"+strconv.FormatInt(upcoming, 10)+"/submit", `{"answers":["A"]}`, headers)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("upcoming submit returned %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Reason != "not-started" {
		t.Fatalf("expected reason not-started, got %+v", body)
	}

	rec = do(t, mux, http.MethodPost, "/exams/"+strconv.FormatInt(ended, 10)+"/submit", `{"answers":["A"]}`, headers)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ended submit returned %d", rec.Code)
	}
	body = errorBody{}
	decodeBody(t, rec, &body)
	if body.Reason != "ended" {
		t.Fatalf("expected reason ended, got %+v", body)
	}
}

func TestAdminEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)
	importBody := `{"title":"Mock","startTime":"2025-08-12T09:00:00Z","endTime":"2025-08-12T11:00:00Z",` +
		`"questions":[{"question":"q","options":["A","B"],"correctAnswer":"A"}]}`

	if rec := do(t, mux, http.MethodPost, "/admin/import", importBody, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("import without token returned %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/admin/import", importBody, map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("import with wrong token returned %d", rec.Code)
	}

	admin := map[string]string{"Authorization": "Bearer secret"}
	rec := do(t, mux, http.MethodPost, "/admin/import", importBody, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("import returned %d: %s", rec.Code, rec.Body.String())
	}
	var imported struct {
		ExamID int64 `json:"examId"`
	}
	decodeBody(t, rec, &imported)
	if imported.ExamID == 0 {
		t.Fatal("expected a new exam ID")
	}

	registerUser(t, mux, "Alice", "North")
	rec = do(t, mux, http.MethodGet, "/admin/metrics", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics returned %d", rec.Code)
	}
	var metrics domain.Metrics
	decodeBody(t, rec, &metrics)
	if metrics.TotalUsers != 1 {
		t.Fatalf("expected 1 registered user, got %+v", metrics)
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	store := memory.NewStore()
	service := app.NewExamServiceWithClock(store, app.NewFeed(), func() time.Time { return testBase })
	mux := http.NewServeMux()
	NewHandler(service, nil, "").Register(mux)

	rec := do(t, mux, http.MethodGet, "/admin/metrics", "", map[string]string{"Authorization": "Bearer "})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected admin surface disabled, got %d", rec.Code)
	}
}
