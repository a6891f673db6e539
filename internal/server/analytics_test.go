package server_test

import (
	"net/http"
	"testing"

	"github.com/tidwall/gjson"
)

// seedStudyWeek populates an account with a deterministic set of
// sessions around the frozen clock (Wed 2025-06-18 20:00 UTC).
func seedStudyWeek(t *testing.T, te *testEnv, acct account) (math, bio string) {
	t.Helper()
	math = te.seedSubject(t, acct, "Math")
	bio = te.seedSubject(t, acct, "Biology")

	te.seedSession(t, acct, math, "2025-06-18T09:00:00Z", 45, "") // today
	te.seedSession(t, acct, math, "2025-06-18T13:00:00Z", 60, "") // today
	te.seedSession(t, acct, bio, "2025-06-18T17:00:00Z", 30, "")  // today
	te.seedSession(t, acct, math, "2025-06-16T10:00:00Z", 50, "") // this week
	te.seedSession(t, acct, bio, "2025-06-02T10:00:00Z", 40, "")  // this month
	return math, bio
}

func TestDashboard(t *testing.T) {
	te := setup(t)
	acct := te.register(t, "dash@example.com")
	seedStudyWeek(t, te, acct)

	// Goals drive the progress figures.
	w := te.do(t, "PUT", "/api/v1/auth/profile", acct.Token,
		`{"dailyGoal":120,"weeklyGoal":600}`)
	assertStatus(t, w, http.StatusOK)

	w = te.get(t, "/api/v1/analytics/dashboard", acct.Token)
	assertStatus(t, w, http.StatusOK)
	body := w.Body.String()

	if got := gjson.Get(body, "overall.totalStudyTime").Int(); got != 225 {
		t.Errorf("overall time = %d, want 225", got)
	}
	if got := gjson.Get(body, "periods.today.studyTime").Int(); got != 135 {
		t.Errorf("today time = %d, want 135", got)
	}
	if got := gjson.Get(body, "periods.today.goalProgress").Float(); got != 112.5 {
		t.Errorf("today progress = %v, want 112.5", got)
	}
	if got := gjson.Get(body, "periods.thisWeek.studyTime").Int(); got != 185 {
		t.Errorf("week time = %d, want 185", got)
	}
	if gjson.Get(body, "periods.thisMonth.goalProgress").Exists() {
		t.Error("thisMonth should not carry goalProgress")
	}
	if got := gjson.Get(body, "goals.dailyStudyTime").Int(); got != 120 {
		t.Errorf("goals.dailyStudyTime = %d", got)
	}
}

func TestDashboard_EmptyAccount(t *testing.T) {
	te := setup(t)
	acct := te.register(t, "empty@example.com")

	w := te.get(t, "/api/v1/analytics/dashboard", acct.Token)
	assertStatus(t, w, http.StatusOK)
	body := w.Body.String()
	if got := gjson.Get(body, "overall.totalSessions").Int(); got != 0 {
		t.Errorf("sessions = %d, want 0", got)
	}
	if got := gjson.Get(body, "overall.averageFocusRating").Float(); got != 0 {
		t.Errorf("avg focus = %v, want 0", got)
	}
}

func TestTimeSeriesEndpoint(t *testing.T) {
	te := setup(t)
	acct := te.register(t, "ts@example.com")
	subj := te.seedSubject(t, acct, "Math")
	te.seedSession(t, acct, subj, "2025-06-16T10:00:00Z", 50, "")

	t.Run("DailyExplicitRange", func(t *testing.T) {
		w := te.get(t,
			"/api/v1/analytics/time-series?period=daily&from=2025-06-16&to=2025-06-18",
			acct.Token)
		assertStatus(t, w, http.StatusOK)
		body := w.Body.String()
		if got := gjson.Get(body, "data.#").Int(); got != 3 {
			t.Fatalf("buckets = %d, want 3", got)
		}
		if got := gjson.Get(body, "data.0.totalTime").Int(); got != 50 {
			t.Errorf("first bucket = %d, want 50", got)
		}
		if got := gjson.Get(body, "data.1.totalTime").Int(); got != 0 {
			t.Errorf("empty bucket = %d, want 0", got)
		}
	})

	t.Run("DefaultsToLast30Days", func(t *testing.T) {
		w := te.get(t, "/api/v1/analytics/time-series", acct.Token)
		assertStatus(t, w, http.StatusOK)
		body := w.Body.String()
		if got := gjson.Get(body, "data.#").Int(); got != 31 {
			t.Errorf("buckets = %d, want 31", got)
		}
		if got := gjson.Get(body, "period").String(); got != "daily" {
			t.Errorf("period = %q, want daily", got)
		}
	})

	t.Run("Weekly", func(t *testing.T) {
		w := te.get(t,
			"/api/v1/analytics/time-series?period=weekly&from=2025-06-02&to=2025-06-18",
			acct.Token)
		assertStatus(t, w, http.StatusOK)
		first := gjson.Get(w.Body.String(), "data.0.date").String()
		if first != "2025-W23" {
			t.Errorf("first bucket = %q, want 2025-W23", first)
		}
	})

	t.Run("BadPeriod", func(t *testing.T) {
		w := te.get(t, "/api/v1/analytics/time-series?period=hourly",
			acct.Token)
		assertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("FromAfterTo", func(t *testing.T) {
		w := te.get(t,
			"/api/v1/analytics/time-series?from=2025-06-18&to=2025-06-01",
			acct.Token)
		assertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("BadDate", func(t *testing.T) {
		w := te.get(t, "/api/v1/analytics/time-series?from=June+1st",
			acct.Token)
		assertStatus(t, w, http.StatusBadRequest)
	})
}

func TestSubjectAnalyticsEndpoint(t *testing.T) {
	te := setup(t)
	acct := te.register(t, "subana@example.com")
	mathID, _ := seedStudyWeek(t, te, acct)

	w := te.get(t, "/api/v1/analytics/subjects?days=30", acct.Token)
	assertStatus(t, w, http.StatusOK)
	body := w.Body.String()

	if got := gjson.Get(body, "summary.totalStudyTime").Int(); got != 225 {
		t.Errorf("summary time = %d, want 225", got)
	}
	if got := gjson.Get(body, "summary.subjectCount").Int(); got != 2 {
		t.Errorf("subjectCount = %d, want 2", got)
	}

	// Math carries 155 of 225 minutes and sorts first.
	if got := gjson.Get(body, "subjects.0.subject.id").String(); got != mathID {
		t.Errorf("first subject = %q, want math", got)
	}
	if got := gjson.Get(body, "subjects.0.totalTime").Int(); got != 155 {
		t.Errorf("math time = %d, want 155", got)
	}
	pct := gjson.Get(body, "subjects.0.timePercentage").Float() +
		gjson.Get(body, "subjects.1.timePercentage").Float()
	if pct < 99.9 || pct > 100.1 {
		t.Errorf("percentages sum to %v", pct)
	}

	t.Run("BadDays", func(t *testing.T) {
		w := te.get(t, "/api/v1/analytics/subjects?days=0", acct.Token)
		assertStatus(t, w, http.StatusBadRequest)
	})
}

func TestPatternsEndpoint(t *testing.T) {
	te := setup(t)
	acct := te.register(t, "pat@example.com")
	seedStudyWeek(t, te, acct)

	w := te.get(t, "/api/v1/analytics/patterns", acct.Token)
	assertStatus(t, w, http.StatusOK)
	body := w.Body.String()

	if got := gjson.Get(body, "patterns.hourlyDistribution.#").Int(); got != 24 {
		t.Errorf("hour buckets = %d, want 24", got)
	}
	if got := gjson.Get(body, "patterns.dailyDistribution.#").Int(); got != 7 {
		t.Errorf("day buckets = %d, want 7", got)
	}
	// Two sessions started at hour 9 and 10... exactly one at hour 13.
	if got := gjson.Get(body, "patterns.hourlyDistribution.13.sessionCount").Int(); got != 1 {
		t.Errorf("hour 13 = %d, want 1", got)
	}
	if got := gjson.Get(body, "patterns.studyMethodEffectiveness.#").Int(); got == 0 {
		t.Error("method effectiveness empty")
	}
}

func TestAnalytics_TimezoneHandling(t *testing.T) {
	te := setup(t)
	acct := te.register(t, "tz@example.com")
	subj := te.seedSubject(t, acct, "Math")
	// 02:00 UTC on the 18th is still the evening of the 17th in
	// New York, so it must leave "today" when that zone is applied.
	te.seedSession(t, acct, subj, "2025-06-18T02:00:00Z", 60, "")

	w := te.get(t, "/api/v1/analytics/dashboard", acct.Token)
	assertStatus(t, w, http.StatusOK)
	if got := gjson.Get(w.Body.String(), "periods.today.studyTime").Int(); got != 60 {
		t.Errorf("UTC today = %d, want 60", got)
	}

	w = te.get(t,
		"/api/v1/analytics/dashboard?timezone=America/New_York", acct.Token)
	assertStatus(t, w, http.StatusOK)
	if got := gjson.Get(w.Body.String(), "periods.today.studyTime").Int(); got != 0 {
		t.Errorf("NY today = %d, want 0", got)
	}

	t.Run("InvalidZone", func(t *testing.T) {
		w := te.get(t,
			"/api/v1/analytics/dashboard?timezone=Fake/Zone", acct.Token)
		assertStatus(t, w, http.StatusBadRequest)
	})
}

func TestAnalytics_ErrorRedaction(t *testing.T) {
	te := setup(t)
	acct := te.register(t, "redact@example.com")

	te.db.Close()

	endpoints := []string{
		"/api/v1/analytics/dashboard",
		"/api/v1/analytics/time-series",
		"/api/v1/analytics/subjects",
		"/api/v1/analytics/patterns",
	}
	for _, ep := range endpoints {
		t.Run(ep, func(t *testing.T) {
			w := te.get(t, ep, acct.Token)
			assertStatus(t, w, http.StatusInternalServerError)
			body := w.Body.String()
			if gjson.Get(body, "error").String() != "internal server error" {
				t.Errorf("response exposes internals: %s", body)
			}
		})
	}
}
