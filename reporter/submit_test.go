package reporter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockSyslogSender struct {
	mu    sync.Mutex
	calls []mockSyslogCall
	failN int
}

type mockSyslogCall struct {
	appName        string
	structuredData string
	message        string
	timeout        time.Duration
}

func (m *mockSyslogSender) SendRFC5424Timeout(appName string, structuredData string, message string, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockSyslogCall{appName: appName, structuredData: structuredData, message: message, timeout: timeout})
	if m.failN > 0 {
		m.failN--
		return errors.New("mock syslog send failure")
	}
	return nil
}

func (m *mockSyslogSender) Calls() []mockSyslogCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockSyslogCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func newTestSubmitter(t *testing.T, indexDB string) (*Submitter, string, string) {
	t.Helper()
	tmp := t.TempDir()
	csvPath := filepath.Join(tmp, "hazard_reports.csv")
	uploads := filepath.Join(tmp, "uploads")
	cfg := SubmitterConfig{ReportsCSV: csvPath, UploadsDir: uploads}
	if indexDB != "" {
		cfg.IndexDB = filepath.Join(tmp, indexDB)
	}
	s, err := NewSubmitter(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, csvPath, uploads
}

func pinClock(s *Submitter, ts time.Time) {
	s.assembler.Now = func() time.Time { return ts }
}

func readLog(t *testing.T, csvPath string) [][]string {
	t.Helper()
	rows, err := ReadRows(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestSubmit_AttentionWithoutPhoto(t *testing.T) {
	s, csvPath, uploads := newTestSubmitter(t, "")

	res, err := s.Submit(FormInput{
		SpecificArea: "Line 3 Wrapper",
		Description:  "Loose guard rail",
		Urgency:      UrgencyOptions[1].Label,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strictIDPattern.MatchString(res.ReportID) {
		t.Fatalf("unexpected report id %q", res.ReportID)
	}

	rows := readLog(t, csvPath)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	row := rows[1]
	if row[0] != res.ReportID || row[2] != AnonymousEmployee || row[4] != "Line 3 Wrapper" || row[6] != "Loose guard rail" {
		t.Fatalf("unexpected row: %v", row)
	}
	if row[5] != UrgencyAttention {
		t.Fatalf("expected attention code, got %q", row[5])
	}
	if row[7] != NoImage {
		t.Fatalf("expected N/A image path, got %q", row[7])
	}
	entries, _ := os.ReadDir(uploads)
	if len(entries) != 0 {
		t.Fatalf("expected no image files, got %d", len(entries))
	}
}

func TestSubmit_EmptyDescriptionWritesNothing(t *testing.T) {
	s, csvPath, uploads := newTestSubmitter(t, "")
	before, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Submit(FormInput{
		SpecificArea: "Line 3 Wrapper",
		Description:  "",
		Photo:        &Photo{Filename: "rail.png", Data: []byte("png")},
	})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	after, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("log changed on a rejected submission")
	}
	entries, _ := os.ReadDir(uploads)
	if len(entries) != 0 {
		t.Fatalf("expected zero files written, got %d", len(entries))
	}
}

func TestSubmit_PhotoLinkedByReportID(t *testing.T) {
	s, csvPath, uploads := newTestSubmitter(t, "")
	pinClock(s, time.Date(2026, 10, 19, 11, 45, 2, 0, time.Local))

	res, err := s.Submit(FormInput{
		EmployeeID:   "E1042",
		Entity:       "Feed Mill",
		SpecificArea: "Pellet press",
		Description:  "exposed wiring",
		Urgency:      "Immediate",
		Photo:        &Photo{Filename: "wires.JPG", Data: []byte("jpeg-bytes")},
	})
	if err != nil {
		t.Fatal(err)
	}

	wantPath := filepath.Join(uploads, "HAZ20261019-114502.JPG")
	if res.Report.ImagePath != wantPath {
		t.Fatalf("image path=%q want %q", res.Report.ImagePath, wantPath)
	}
	b, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "jpeg-bytes" {
		t.Fatalf("unexpected image content %q", string(b))
	}

	rows := readLog(t, csvPath)
	want := []string{"HAZ20261019-114502", "2026-10-19 11:45:02", "E1042", "Feed Mill", "Pellet press", UrgencyImmediate, "exposed wiring", wantPath}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Fatalf("column %s=%q want %q", Columns[i], rows[1][i], want[i])
		}
	}
}

func TestSubmit_SameSecondDoesNotOverwrite(t *testing.T) {
	s, csvPath, uploads := newTestSubmitter(t, "")
	pinClock(s, time.Date(2026, 10, 19, 11, 45, 2, 0, time.Local))

	var ids []string
	for _, body := range []string{"first", "second"} {
		res, err := s.Submit(FormInput{
			SpecificArea: "Gate",
			Description:  body,
			Photo:        &Photo{Filename: "p.png", Data: []byte(body)},
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, res.ReportID)
	}
	if ids[0] == ids[1] {
		t.Fatalf("expected distinct ids, got %v", ids)
	}
	if ids[1] != ids[0]+"-2" {
		t.Fatalf("unexpected collision suffix: %v", ids)
	}

	entries, _ := os.ReadDir(uploads)
	if len(entries) != 2 {
		t.Fatalf("expected two image files, got %d", len(entries))
	}
	rows := readLog(t, csvPath)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	b, _ := os.ReadFile(rows[1][7])
	if string(b) != "first" {
		t.Fatalf("first image overwritten: %q", string(b))
	}
}

func TestSubmit_ClockStepBackDoesNotReuseIDs(t *testing.T) {
	s, csvPath, _ := newTestSubmitter(t, "")
	ts := time.Date(2026, 10, 19, 11, 45, 2, 0, time.Local)

	var ids []string
	for i, at := range []time.Time{ts, ts.Add(-time.Second), ts} {
		pinClock(s, at)
		body := []string{"first", "second", "third"}[i]
		res, err := s.Submit(FormInput{
			SpecificArea: "Gate",
			Description:  body,
			Photo:        &Photo{Filename: "p.png", Data: []byte(body)},
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, res.ReportID)
	}

	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("id issued twice: %v", ids)
		}
		seen[id] = true
	}
	rows := readLog(t, csvPath)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for i, body := range []string{"first", "second", "third"} {
		b, err := os.ReadFile(rows[i+1][7])
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != body {
			t.Fatalf("row %d image holds %q want %q", i+1, string(b), body)
		}
	}
}

func TestSubmit_RestartWithoutIndexContinuesFromLog(t *testing.T) {
	tmp := t.TempDir()
	cfg := SubmitterConfig{
		ReportsCSV: filepath.Join(tmp, "hazard_reports.csv"),
		UploadsDir: filepath.Join(tmp, "uploads"),
	}
	ts := time.Date(2026, 10, 19, 11, 45, 2, 0, time.Local)
	in := FormInput{SpecificArea: "Gate", Description: "d", Photo: &Photo{Filename: "p.png", Data: []byte("x")}}

	var ids []string
	for i := 0; i < 2; i++ {
		s, err := NewSubmitter(cfg)
		if err != nil {
			t.Fatal(err)
		}
		pinClock(s, ts)
		res, err := s.Submit(in)
		if err != nil {
			t.Fatal(err)
		}
		_ = s.Close()
		ids = append(ids, res.ReportID)
	}
	if ids[0] != "HAZ20261019-114502" || ids[1] != "HAZ20261019-114502-2" {
		t.Fatalf("unexpected ids across restart: %v", ids)
	}
}

func TestSubmit_TakenImageNameMintsAnotherID(t *testing.T) {
	s, csvPath, uploads := newTestSubmitter(t, "")
	pinClock(s, time.Date(2026, 10, 19, 11, 45, 2, 0, time.Local))
	stray := filepath.Join(uploads, "HAZ20261019-114502.png")
	if err := os.WriteFile(stray, []byte("stray"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.Submit(FormInput{SpecificArea: "Gate", Description: "d", Photo: &Photo{Filename: "p.png", Data: []byte("new")}})
	if err != nil {
		t.Fatal(err)
	}
	if res.ReportID != "HAZ20261019-114502-2" {
		t.Fatalf("unexpected id %q", res.ReportID)
	}
	if b, _ := os.ReadFile(stray); string(b) != "stray" {
		t.Fatalf("existing file replaced: %q", string(b))
	}
	rows := readLog(t, csvPath)
	if len(rows) != 2 || rows[1][0] != res.ReportID || rows[1][7] != filepath.Join(uploads, "HAZ20261019-114502-2.png") {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestIndex_ExistsLookupFailureCountsAsMissing(t *testing.T) {
	s, _, _ := newTestSubmitter(t, "index.db")
	if err := s.index.db.Migrator().DropTable(&ReportIndex{}); err != nil {
		t.Fatal(err)
	}
	if s.index.Exists("HAZ20261019-114502") {
		t.Fatalf("expected lookup failure to report not found")
	}
}

func TestSubmit_ImageFailureAppendsNothing(t *testing.T) {
	store := NewMemStore()
	store.ImageErr = errors.New("permission denied")
	s := NewSubmitterWithStore(store, nil)

	_, err := s.Submit(FormInput{SpecificArea: "a", Description: "b", Photo: &Photo{Filename: "x.png", Data: []byte("x")}})
	var iw *ImageWriteError
	if !errors.As(err, &iw) {
		t.Fatalf("expected ImageWriteError, got %v", err)
	}
	if len(store.Reports()) != 0 {
		t.Fatalf("expected no rows after image failure")
	}
}

func TestSubmit_AppendFailureIsLogAppendError(t *testing.T) {
	store := NewMemStore()
	store.AppendErr = errors.New("disk full")
	s := NewSubmitterWithStore(store, nil)
	m := NewMetrics()
	s.SetMetrics(m)

	_, err := s.Submit(FormInput{SpecificArea: "a", Description: "b"})
	var la *LogAppendError
	if !errors.As(err, &la) {
		t.Fatalf("expected LogAppendError, got %v", err)
	}
	if !IsSaveFailure(err) || IsValidation(err) {
		t.Fatalf("misclassified error: %v", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("cause should be kept: %v", err)
	}
	if got := testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeAppendError)); got != 1 {
		t.Fatalf("append_error counter=%v", got)
	}
}

func TestSubmit_EnsuresStorageEachTime(t *testing.T) {
	store := NewMemStore()
	s := NewSubmitterWithStore(store, nil)
	for i := 0; i < 3; i++ {
		if _, err := s.Submit(FormInput{SpecificArea: "a", Description: "b"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Submit(FormInput{SpecificArea: "a"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if store.EnsureCalls() != 3 {
		t.Fatalf("expected ensure per accepted submission, got %d", store.EnsureCalls())
	}
	if len(store.Reports()) != 3 || store.ImageCount() != 0 {
		t.Fatalf("unexpected store state")
	}
}

func TestSubmit_MetricsByOutcome(t *testing.T) {
	s := NewSubmitterWithStore(NewMemStore(), nil)
	m := NewMetrics()
	s.SetMetrics(m)

	_, _ = s.Submit(FormInput{SpecificArea: "a", Description: "b", Photo: &Photo{Filename: "p.png", Data: []byte("1234")}})
	_, _ = s.Submit(FormInput{SpecificArea: "a"})
	_, _ = s.Submit(FormInput{})

	if got := testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeAccepted)); got != 1 {
		t.Fatalf("accepted=%v", got)
	}
	if got := testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeInvalid)); got != 2 {
		t.Fatalf("invalid=%v", got)
	}
	if got := testutil.ToFloat64(m.ImageBytes); got != 4 {
		t.Fatalf("image bytes=%v", got)
	}
}

func TestSubmit_NotifiesAcceptedReports(t *testing.T) {
	s, _, _ := newTestSubmitter(t, "")
	sender := &mockSyslogSender{failN: 1}
	s.notifier = NewNotifier(sender, NotifyConfig{AppName: "hazard-reporter", Timeout: time.Second}, map[string]string{"site": "plant-1"})

	first, err := s.Submit(FormInput{Entity: "Warehouse", SpecificArea: "Bay 4", Description: "pallet stack leaning", Urgency: "Immediate"})
	if err != nil {
		t.Fatalf("notify failure must not fail the submission: %v", err)
	}
	if _, err := s.Submit(FormInput{SpecificArea: "a", Description: ""}); err == nil {
		t.Fatalf("expected validation error")
	}

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(calls))
	}
	c := calls[0]
	if c.appName != "hazard-reporter" || c.timeout != time.Second {
		t.Fatalf("unexpected call: %+v", c)
	}
	for _, want := range []string{`report_id="` + first.ReportID + `"`, `entity="Warehouse"`, `urgency="immediate"`, `has_image="false"`, `site="plant-1"`} {
		if !strings.Contains(c.structuredData, want) {
			t.Fatalf("structured data %q missing %s", c.structuredData, want)
		}
	}
	if !strings.Contains(c.message, `"description":"pallet stack leaning"`) {
		t.Fatalf("unexpected message %q", c.message)
	}
}

func TestSubmit_IndexFlagsRepeatsAndSurvivesRestart(t *testing.T) {
	tmp := t.TempDir()
	cfg := SubmitterConfig{
		ReportsCSV: filepath.Join(tmp, "hazard_reports.csv"),
		UploadsDir: filepath.Join(tmp, "uploads"),
		IndexDB:    filepath.Join(tmp, "index", "reports.db"),
	}
	ts := time.Date(2026, 10, 19, 16, 0, 0, 0, time.Local)

	s1, err := NewSubmitter(cfg)
	if err != nil {
		t.Fatal(err)
	}
	pinClock(s1, ts)
	r1, err := s1.Submit(FormInput{Entity: "Flour Mill", SpecificArea: "Silo 5", Description: "Dust build-up on ladder"})
	if err != nil {
		t.Fatal(err)
	}
	if len(r1.Duplicates) != 0 {
		t.Fatalf("unexpected duplicates %v", r1.Duplicates)
	}
	if !s1.index.Exists(r1.ReportID) {
		t.Fatalf("expected %s indexed", r1.ReportID)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	// A restart within the same second must not reuse the first ID.
	s2, err := NewSubmitter(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	pinClock(s2, ts)
	r2, err := s2.Submit(FormInput{Entity: "Flour Mill", SpecificArea: "Silo 5", Description: "dust   build-up on LADDER"})
	if err != nil {
		t.Fatal(err)
	}
	if r2.ReportID == r1.ReportID {
		t.Fatalf("id reused after restart: %s", r2.ReportID)
	}
	if len(r2.Duplicates) != 1 || r2.Duplicates[0] != r1.ReportID {
		t.Fatalf("expected repeat of %s, got %v", r1.ReportID, r2.Duplicates)
	}

	rows := readLog(t, cfg.ReportsCSV)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
}
