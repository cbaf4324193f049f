package web

import (
	"embed"
	"errors"
	"html/template"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/card-export-formatter/internal/converter"
	"github.com/ginjaninja78/card-export-formatter/internal/logging"
	"github.com/ginjaninja78/card-export-formatter/internal/tablewriter"
	"github.com/ginjaninja78/card-export-formatter/pkg/utils"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// multipartMemory is how much of a multipart body is held in memory before
// the rest spills to temporary files.
const multipartMemory = 8 << 20

var (
	errNoFile     = errors.New("no file uploaded; send it in the \"file\" field")
	errBadFormat  = errors.New("format must be csv or xlsx")
	errBodyTooBig = errors.New("upload exceeds the size limit")
)

// indexPage is the data for templates/index.html.
type indexPage struct {
	Error         string
	MaxUploadMB   int64
	DefaultFormat string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, http.StatusOK, "")
}

func (s *Server) renderIndex(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	indexTemplate.Execute(w, indexPage{
		Error:         errMsg,
		MaxUploadMB:   s.cfg.Server.MaxUploadBytes >> 20,
		DefaultFormat: s.cfg.Output.Format,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFormat stages the uploaded file, cleans it and streams the result
// back as an attachment. The staged input and the output are removed before
// the handler returns.
func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	limit := s.cfg.Server.MaxUploadBytes

	if r.ContentLength > limit {
		s.respondError(w, r, errBodyTooBig)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, errBodyTooBig)
			return
		}
		s.respondError(w, r, errNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	format, err := s.requestFormat(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		s.respondError(w, r, errNoFile)
		return
	}
	defer upload.Close()

	staged, err := s.files.Stage(upload, header.Filename)
	if err != nil {
		log.Error().Err(err).Msg("failed to stage upload")
		s.respondError(w, r, err)
		return
	}
	defer func() {
		if err := staged.Remove(); err != nil {
			log.Warn().Err(err).Str("path", staged.Path).Msg("failed to remove staged upload")
		}
	}()

	log.Debug().
		Str("upload_id", staged.ID).
		Str("filename", staged.OriginalName).
		Int64("size", staged.Size).
		Msg("upload staged")

	ext := tablewriter.Extension(format)
	outputPath := filepath.Join(s.files.StagingDir, staged.ID+"_cleaned"+ext)

	result := s.conv.Run(r.Context(), staged.Path,
		converter.WithOutputPath(outputPath),
		converter.WithFormat(format),
		converter.WithOriginalName(header.Filename),
	)
	defer os.Remove(outputPath)

	if !result.Success {
		s.respondError(w, r, result.Error)
		return
	}

	out, err := os.Open(result.OutputFile)
	if err != nil {
		log.Error().Err(err).Msg("failed to open cleaned file")
		s.respondError(w, r, err)
		return
	}
	defer out.Close()

	downloadName := utils.FileStem(header.Filename) + "_cleaned" + ext

	h := w.Header()
	h.Set("Content-Type", tablewriter.ContentType(format))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Rows-Read", strconv.Itoa(result.Stats.RowsRead))
	h.Set("X-Rows-Written", strconv.Itoa(result.Stats.RowsWritten))

	http.ServeContent(w, r, downloadName, time.Time{}, out)
}

// requestFormat reads the output format from the query string or the form,
// falling back to the configured default.
func (s *Server) requestFormat(r *http.Request) (string, error) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = r.FormValue("format")
	}
	if format == "" {
		return s.cfg.Output.Format, nil
	}

	format = strings.ToLower(format)
	switch format {
	case tablewriter.FormatCSV, tablewriter.FormatXLSX:
		return format, nil
	default:
		return "", errBadFormat
	}
}
