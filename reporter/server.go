package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const (
	SuccessMessage     = "Thank you! Your report has been submitted successfully."
	SaveFailureMessage = "Failed to save the report. Please contact the OHS department directly."
	MissingFieldsHint  = "Please fill in both the 'Specific Area' and 'Hazard Description' fields."
)

// ReportSubmitter is the part of Submitter the HTTP layer needs.
type ReportSubmitter interface {
	Submit(in FormInput) (Result, error)
	Entities() []string
}

type SubmitResp struct {
	OK        bool     `json:"ok"`
	ReportID  string   `json:"report_id,omitempty"`
	Message   string   `json:"message,omitempty"`
	ImagePath string   `json:"image_path,omitempty"`
	Error     string   `json:"error,omitempty"`
	Fields    []string `json:"fields,omitempty"`
}

type FormOptionsResp struct {
	Entities        []string        `json:"entities"`
	Urgencies       []UrgencyOption `json:"urgencies"`
	DefaultUrgency  string          `json:"default_urgency"`
	MaxAreaLength   int             `json:"max_area_length"`
	ImageExtensions []string        `json:"image_extensions"`
}

// Router serves the submission API.
type Router struct {
	*mux.Router
	submitter ReportSubmitter
	maxUpload int64
}

func NewRouter(submitter ReportSubmitter, metrics *Metrics, maxUploadBytes int64) *Router {
	r := &Router{
		Router:    mux.NewRouter(),
		submitter: submitter,
		maxUpload: maxUploadBytes,
	}

	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/form", r.formOptions).Methods("GET")
	api.HandleFunc("/reports", r.createReport).Methods("POST")
	return r
}

// NewHTTPServer wraps handler with the timeouts used in production.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) formOptions(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, FormOptionsResp{
		Entities:        r.submitter.Entities(),
		Urgencies:       UrgencyOptions,
		DefaultUrgency:  UrgencyAttention,
		MaxAreaLength:   MaxSpecificAreaLen,
		ImageExtensions: []string{"png", "jpg", "jpeg"},
	})
}

func (r *Router) createReport(w http.ResponseWriter, req *http.Request) {
	if r.maxUpload > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	}
	if err := req.ParseMultipartForm(8 << 20); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			respondFormError(w, err)
			return
		}
		if err := req.ParseForm(); err != nil {
			respondFormError(w, err)
			return
		}
	}

	in := FormInput{
		EmployeeID:   req.FormValue("employee_id"),
		Entity:       req.FormValue("entity"),
		SpecificArea: req.FormValue("specific_area"),
		Description:  req.FormValue("description"),
		Urgency:      req.FormValue("urgency"),
	}
	photo, err := readPhoto(req)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondFormError(w, err)
			return
		}
		respondJSON(w, http.StatusBadRequest, SubmitResp{OK: false, Error: "invalid photo: " + err.Error()})
		return
	}
	in.Photo = photo

	res, err := r.submitter.Submit(in)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			msg := ve.Error()
			if ve.Reason == "" {
				msg = MissingFieldsHint
			}
			respondJSON(w, http.StatusBadRequest, SubmitResp{OK: false, Error: msg, Fields: ve.Fields})
			return
		}
		log.Printf("report submission failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, SubmitResp{OK: false, Error: SaveFailureMessage})
		return
	}

	resp := SubmitResp{OK: true, ReportID: res.ReportID, Message: SuccessMessage}
	if res.Report.HasImage() {
		resp.ImagePath = res.Report.ImagePath
	}
	respondJSON(w, http.StatusCreated, resp)
}

// readPhoto returns the "photo" upload, or nil when none was attached.
func readPhoto(req *http.Request) (*Photo, error) {
	f, fh, err := req.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// Browsers send an empty part when no file was picked.
	if fh.Size == 0 {
		return nil, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &Photo{Filename: fh.Filename, Data: data}, nil
}

func respondFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondJSON(w, http.StatusRequestEntityTooLarge, SubmitResp{OK: false, Error: fmt.Sprintf("request larger than %d bytes", tooLarge.Limit)})
		return
	}
	respondJSON(w, http.StatusBadRequest, SubmitResp{OK: false, Error: "invalid form: " + err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
