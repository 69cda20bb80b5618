package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hazyhaar/docxsvc/docxmerge"
	"github.com/hazyhaar/docxsvc/docxread"
	"github.com/hazyhaar/docxsvc/fetch"
	"github.com/hazyhaar/docxsvc/observability"
	"github.com/hazyhaar/docxsvc/shield"
	"github.com/hazyhaar/docxsvc/urlfind"
)

const (
	docxMIME         = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mergedFilename   = "generated_document.docx"
	msgNoSelected    = "No selected file"
	msgBadFormat     = "Invalid file format. Must be .docx"
	msgNoSource      = "No file part or file_url found in the request."
	msgNotDocx       = "Fetched file does not appear to be a .docx"
	msgNoBytes       = "Document bytes could not be determined."
	msgBadTemplate   = "Template must be a .docx file"
	msgNoContext     = "No JSON data provided for merge"
	msgBodyTooLarge  = "Request body too large"
	msgBadPayload    = "Malformed request body: "
	msgInternalError = "Internal server error: "
)

// Query and form keys consulted for URLs, in order.
var (
	readURLKeys     = []string{"file_url", "url"}
	templateURLKeys = []string{"template_url", "templateUrl", "template"}
	contextFields   = []string{"data", "context"}
)

func (s *Service) handleRead(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())

	p, err := readPayload(r, s.memory)
	defer p.cleanup(log)
	if err != nil {
		s.payloadError(w, log, "read", err)
		return
	}

	var content []byte
	switch fh := p.file("file"); {
	case fh != nil || p.emptyFile("file"):
		if fh == nil || fh.Filename == "" {
			s.fail(w, "read", http.StatusBadRequest, msgNoSelected)
			return
		}
		if !hasDocxExt(fh.Filename) {
			s.fail(w, "read", http.StatusBadRequest, msgBadFormat)
			return
		}
		content, err = readUpload(fh)
		if err != nil {
			log.Error("service: read upload", "error", err)
			s.fail(w, "read", http.StatusInternalServerError, msgNoBytes)
			return
		}
	default:
		u := p.first(readURLKeys...)
		if u == "" {
			// Covers both the JSON body and the raw-body re-parse: the
			// finder runs on the bytes whatever the declared type.
			u = urlfind.FindBytes(p.raw)
		}
		if u == "" {
			s.fail(w, "read", http.StatusBadRequest, msgNoSource)
			return
		}

		res, err := s.fetch(r.Context(), u)
		if err != nil {
			log.Warn("service: fetch document", "url", u, "error", err)
			s.fail(w, "read", http.StatusBadRequest, fetchMessage("Failed to fetch file", err))
			return
		}
		if !looksLikeDocx(res.ContentType, u) {
			log.Info("service: fetched content is not docx", "url", u, "content_type", res.ContentType, "detected", res.Detected)
			s.fail(w, "read", http.StatusBadRequest, msgNotDocx)
			return
		}
		content = res.Body
	}

	if len(content) == 0 {
		s.fail(w, "read", http.StatusInternalServerError, msgNoBytes)
		return
	}

	env := s.reader.Read(content)
	if env.OK() {
		log.Debug("service: read document", "bytes", len(content), "chars", len(env.Text()))
		s.metrics.ObserveOperation("read", observability.ResultSuccess)
	} else {
		log.Warn("service: read failed", "message", env.Message)
		s.metrics.ObserveOperation("read", observability.ResultError)
	}
	writeEnvelope(w, http.StatusOK, env)
}

func (s *Service) handleMerge(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())

	p, err := readPayload(r, s.memory)
	defer p.cleanup(log)
	if err != nil {
		s.payloadError(w, log, "merge", err)
		return
	}

	var template []byte
	if p.emptyFile("template") && p.first("template") == "" {
		s.fail(w, "merge", http.StatusBadRequest, msgBadTemplate)
		return
	}
	if fh := p.file("template"); fh != nil {
		if !hasDocxExt(fh.Filename) {
			s.fail(w, "merge", http.StatusBadRequest, msgBadTemplate)
			return
		}
		template, err = readUpload(fh)
		if err != nil {
			log.Error("service: read template upload", "error", err)
			s.fail(w, "merge", http.StatusInternalServerError, msgInternalError+err.Error())
			return
		}
	}

	contextJSON := p.raw
	if p.multipart != nil {
		contextJSON = []byte(p.field(contextFields...))
	}
	if len(strings.TrimSpace(string(contextJSON))) == 0 {
		s.fail(w, "merge", http.StatusBadRequest, msgNoContext)
		return
	}

	if template == nil && !carriesTemplateURL(contextJSON) {
		u := p.first(templateURLKeys...)
		if u == "" && p.json {
			u = urlfind.FindBytes(p.raw)
		}
		if u != "" {
			res, err := s.fetch(r.Context(), u)
			if err != nil {
				log.Warn("service: fetch template", "url", u, "error", err)
				s.fail(w, "merge", http.StatusBadRequest, "Failed to fetch template: "+err.Error())
				return
			}
			template = res.Body
		}
	}

	out, err := s.merger.Merge(r.Context(), contextJSON, template)
	if err != nil {
		code, msg := mergeFailure(err)
		log.Warn("service: merge failed", "status", code, "error", err)
		s.fail(w, "merge", code, msg)
		return
	}

	s.metrics.ObserveOperation("merge", observability.ResultSuccess)
	w.Header().Set("Content-Type", docxMIME)
	w.Header().Set("Content-Disposition", "attachment; filename="+mergedFilename)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		log.Warn("service: write merged document", "error", err)
	}
}

// carriesTemplateURL reports whether the merge context names its own
// template, in which case the merger resolves it.
func carriesTemplateURL(contextJSON []byte) bool {
	data, err := docxmerge.ParseContext(contextJSON)
	return err == nil && docxmerge.TemplateURL(data) != ""
}

// mergeFailure maps a Merge error to a status and message.
func mergeFailure(err error) (int, string) {
	switch {
	case errors.Is(err, docxmerge.ErrTemplateFetch):
		return http.StatusBadRequest, "Failed to fetch template: " +
			strings.TrimPrefix(err.Error(), docxmerge.ErrTemplateFetch.Error()+": ")
	default:
		return http.StatusInternalServerError, msgInternalError + err.Error()
	}
}

// fetchMessage renders a fetch error the way clients expect it.
func fetchMessage(prefix string, err error) string {
	var httpErr *fetch.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("%s. HTTP %d", prefix, httpErr.StatusCode)
	}
	return prefix + ": " + err.Error()
}

func (s *Service) payloadError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		log.Warn("service: body too large", "limit", tooLarge.Limit)
		s.fail(w, op, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return
	}
	log.Warn("service: bad payload", "error", err)
	s.fail(w, op, http.StatusBadRequest, msgBadPayload+err.Error())
}

func (s *Service) fail(w http.ResponseWriter, op string, code int, msg string) {
	s.metrics.ObserveOperation(op, observability.ResultError)
	writeEnvelope(w, code, docxread.Failure(msg))
}

func writeEnvelope(w http.ResponseWriter, code int, env docxread.Envelope) {
	data, err := env.Encode()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, docxread.Failure(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
