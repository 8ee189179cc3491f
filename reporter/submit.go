package reporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SubmitterConfig struct {
	ReportsCSV string
	UploadsDir string
	// IndexDB enables the SQLite side index when set.
	IndexDB  string
	Entities []string
	Debug    bool
	Notify   NotifyConfig
	// FixedLabels are constant labels added to notification structured-data.
	FixedLabels map[string]string
}

// Result is what a successful submission hands back to the form.
type Result struct {
	ReportID string
	Report   HazardReport
	// Duplicates lists earlier reports with the same normalized content, when the index is enabled.
	Duplicates []string
}

// Submitter runs one submission at a time: validate, store the photo, append the row.
type Submitter struct {
	cfg       SubmitterConfig
	mu        sync.Mutex
	store     Storage
	index     *Index
	assembler *Assembler
	notifier  *Notifier
	metrics   *Metrics
}

func (s *Submitter) debugf(format string, args ...any) {
	if s == nil || !s.cfg.Debug {
		return
	}
	log.Printf(format, args...)
}

func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	store, err := NewFileStore(cfg.ReportsCSV, cfg.UploadsDir)
	if err != nil {
		return nil, err
	}
	if err := store.Ensure(); err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	s := &Submitter{cfg: cfg, store: store}
	if strings.TrimSpace(cfg.IndexDB) != "" {
		db, err := OpenDB(cfg.IndexDB)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		s.index = NewIndex(db)
	}
	var exists func(string) bool
	if s.index != nil {
		exists = s.index.Exists
	}
	minter := NewIDMinter(exists)
	if err := seedMinter(minter, store.CSVPath()); err != nil {
		_ = s.index.Close()
		return nil, fmt.Errorf("read report ids: %w", err)
	}
	s.assembler = NewAssembler(minter, cfg.Entities)

	if strings.TrimSpace(cfg.Notify.SyslogAddr) != "" {
		s.notifier = NewNotifier(NewSyslogClient(cfg.Notify.SyslogAddr), cfg.Notify, cfg.FixedLabels)
	}
	return s, nil
}

// seedMinter makes the minter continue after the newest ID already in the log.
// An unreadable row stops the scan without failing startup.
func seedMinter(m *IDMinter, csvPath string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for line := 1; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			log.Printf("reports log %s: stop reading ids: %v", csvPath, err)
			return nil
		}
		if line == 1 || len(row) == 0 {
			continue
		}
		if err := m.Observe(row[0], time.Local); err != nil {
			log.Printf("reports log %s row %d: %v", csvPath, line, err)
		}
	}
}

// NewSubmitterWithStore wires a Submitter around an existing Storage, without index or notifications.
func NewSubmitterWithStore(store Storage, entities []string) *Submitter {
	return &Submitter{
		store:     store,
		assembler: NewAssembler(NewIDMinter(nil), entities),
	}
}

// SetMetrics attaches collectors; nil disables them.
func (s *Submitter) SetMetrics(m *Metrics) { s.metrics = m }

// Entities returns the location choices the form should offer.
func (s *Submitter) Entities() []string { return s.assembler.Entities }

func (s *Submitter) Close() error {
	if s == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

// Submit runs one form submission to completion. Validation failures return a
// *ValidationError before anything is written. An *ImageWriteError aborts before the
// row is appended; a *LogAppendError means the report was not recorded.
func (s *Submitter) Submit(in FormInput) (Result, error) {
	start := time.Now()
	reqID := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.assembler.Assemble(in)
	if err != nil {
		s.metrics.observe(OutcomeInvalid)
		s.debugf("submit req=%s rejected: %v", reqID, err)
		return Result{}, err
	}

	if err := s.store.Ensure(); err != nil {
		s.metrics.observe(OutcomeAppendError)
		return Result{}, &LogAppendError{ReportID: report.ReportID, Err: err}
	}

	imagePath, err := PersistImage(s.store, in.Photo, report.ReportID)
	for retry := 0; errors.Is(err, ErrImageExists) && retry < 3; retry++ {
		log.Printf("submit req=%s id=%s image name taken, minting another id", reqID, report.ReportID)
		report.ReportID = s.assembler.Minter.Mint(report.CreatedAt)
		imagePath, err = PersistImage(s.store, in.Photo, report.ReportID)
	}
	if err != nil {
		s.metrics.observe(OutcomeImageError)
		log.Printf("submit req=%s id=%s image failed: %v", reqID, report.ReportID, err)
		return Result{}, err
	}
	if imagePath != "" {
		report.ImagePath = imagePath
		s.metrics.addImageBytes(len(in.Photo.Data))
	}

	if err := s.store.Append(report); err != nil {
		s.metrics.observe(OutcomeAppendError)
		if report.HasImage() {
			log.Printf("submit req=%s id=%s append failed, image %s left unreferenced: %v", reqID, report.ReportID, report.ImagePath, err)
		} else {
			log.Printf("submit req=%s id=%s append failed: %v", reqID, report.ReportID, err)
		}
		return Result{}, &LogAppendError{ReportID: report.ReportID, Err: err}
	}

	res := Result{ReportID: report.ReportID, Report: report}
	if s.index != nil {
		dups, err := s.index.Record(report)
		if err != nil {
			log.Printf("submit req=%s id=%s index failed: %v", reqID, report.ReportID, err)
		}
		if len(dups) > 0 {
			log.Printf("submit req=%s id=%s looks like a repeat of %s", reqID, report.ReportID, strings.Join(dups, ","))
		}
		res.Duplicates = dups
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(report); err != nil {
			log.Printf("submit req=%s id=%s notify failed: %v", reqID, report.ReportID, err)
		}
	}

	s.metrics.observe(OutcomeAccepted)
	s.debugf("submit req=%s id=%s entity=%q urgency=%s image=%s elapsed=%s", reqID, report.ReportID, report.Entity, UrgencyName(report.Urgency), report.ImagePath, time.Since(start))
	return res, nil
}
