package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"medical-files-server/internal/index"
	"medical-files-server/internal/logging"
	"medical-files-server/internal/medfiles"
	"medical-files-server/internal/models"
	"medical-files-server/internal/query"
	"medical-files-server/internal/storage"
	"medical-files-server/internal/utils"
)

// MedicalFileHandler handles medical file upload, listing, download and delete requests.
type MedicalFileHandler struct {
	Service *medfiles.Service
	// Local serves token downloads; nil when files live in a cloud bucket.
	Local  *storage.Local
	Logger *logging.Logger
}

// NewMedicalFileHandler creates a new MedicalFileHandler.
func NewMedicalFileHandler(svc *medfiles.Service, local *storage.Local, logger *logging.Logger) *MedicalFileHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &MedicalFileHandler{Service: svc, Local: local, Logger: logger}
}

// UploadFileRequest holds the non-file form fields of an upload.
type UploadFileRequest struct {
	PatientID   string `form:"patient_id" validate:"required,max=128"`
	PatientName string `form:"patient_name" validate:"required,max=255"`
	Category    string `form:"category" validate:"omitempty,oneof=lab_results insurance prescription medical_records other"`
}

// ListFilesRequest holds the listing filters and view options.
type ListFilesRequest struct {
	PatientID   string `form:"patient_id"`
	Category    string `form:"category" validate:"omitempty,oneof=lab_results insurance prescription medical_records other"`
	Search      string `form:"q"`
	PatientName string `form:"patient_name"`
	Sort        string `form:"sort" validate:"omitempty,oneof=date name category"`
	Order       string `form:"order" validate:"omitempty,oneof=asc desc"`
}

// FileResult is the per-file entry of a batch upload response.
type FileResult struct {
	TaskID        string              `json:"task_id"`
	FileName      string              `json:"file_name"`
	Status        string              `json:"status"`
	Reason        string              `json:"reason,omitempty"`
	Detail        string              `json:"detail,omitempty"`
	File          *models.MedicalFile `json:"file,omitempty"`
	CleanupFailed bool                `json:"cleanup_failed,omitempty"`
}

// BatchUploadResponse summarizes a batch upload. Partial success is normal.
type BatchUploadResponse struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results"`
}

// UploadFile handles a single-file multipart upload.
func (h *MedicalFileHandler) UploadFile(c *gin.Context) {
	if !parseMultipart(c) {
		return
	}

	var req UploadFileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "Error retrieving file from form: "+err.Error())
		return
	}

	blob, err := readBlob(header, req.Category)
	if err != nil {
		utils.BadRequest(c, "Error reading file content: "+err.Error())
		return
	}

	outcomes := h.Service.UploadBatch(c.Request.Context(), req.PatientID, req.PatientName, []medfiles.FileBlob{blob})
	if len(outcomes) != 1 {
		utils.InternalServerError(c, "Upload produced no result")
		return
	}

	out := outcomes[0]
	if !out.Succeeded() {
		utils.Reject(c, statusForError(out.Err), rejection(out))
		return
	}

	h.Service.Sign(c.Request.Context(), out.Record)
	utils.Created(c, "File uploaded successfully", out.Record)
}

// UploadFiles handles a multi-file upload for one patient.
func (h *MedicalFileHandler) UploadFiles(c *gin.Context) {
	if !parseMultipart(c) {
		return
	}

	var req UploadFileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	form := c.Request.MultipartForm

	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)
	if len(headers) == 0 {
		utils.BadRequest(c, "No files provided")
		return
	}

	blobs := make([]medfiles.FileBlob, 0, len(headers))
	for _, header := range headers {
		blob, err := readBlob(header, req.Category)
		if err != nil {
			utils.BadRequest(c, fmt.Sprintf("Error reading %s: %v", header.Filename, err))
			return
		}
		blobs = append(blobs, blob)
	}

	ctx := c.Request.Context()
	outcomes := h.Service.UploadBatch(ctx, req.PatientID, req.PatientName, blobs)

	resp := BatchUploadResponse{Results: make([]FileResult, 0, len(outcomes))}
	for _, out := range outcomes {
		result := FileResult{
			TaskID:        out.TaskID,
			FileName:      out.FileName,
			Status:        out.State.Status.String(),
			CleanupFailed: out.CleanupFailed,
		}
		if out.Succeeded() {
			resp.Succeeded++
			h.Service.Sign(ctx, out.Record)
			result.File = out.Record
		} else {
			resp.Failed++
			result.Reason = out.State.Reason
			if out.Err != nil {
				result.Detail = out.Err.Detail
			}
		}
		resp.Results = append(resp.Results, result)
	}

	utils.Success(c, fmt.Sprintf("%d of %d files uploaded", resp.Succeeded, len(outcomes)), resp)
}

// ListFiles handles listing files with optional patient and category filters.
func (h *MedicalFileHandler) ListFiles(c *gin.Context) {
	var req ListFilesRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	filter := index.Filter{PatientID: req.PatientID, Category: models.Category(req.Category)}
	opts := query.Options{
		Search:      req.Search,
		PatientName: req.PatientName,
		SortBy:      query.SortField(req.Sort),
		Order:       query.Order(req.Order),
	}

	files, err := h.Service.List(c.Request.Context(), filter, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.Success(c, "Files fetched successfully", files)
}

// GetCategories returns the display metadata of every category.
func (h *MedicalFileHandler) GetCategories(c *gin.Context) {
	categories := models.Categories()
	infos := make([]models.CategoryInfo, 0, len(categories))
	for _, cat := range categories {
		info, _ := cat.Info()
		infos = append(infos, info)
	}
	utils.Success(c, "Categories fetched successfully", infos)
}

// GetFile returns one file record.
func (h *MedicalFileHandler) GetFile(c *gin.Context) {
	file, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, "File fetched successfully", file)
}

// DownloadFile redirects to a short-lived signed URL for the file's bytes.
func (h *MedicalFileHandler) DownloadFile(c *gin.Context) {
	url, err := h.Service.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// ServeDownload streams a locally stored file identified by a signed token.
func (h *MedicalFileHandler) ServeDownload(c *gin.Context) {
	if h.Local == nil {
		utils.NotFound(c, "Direct downloads are not enabled")
		return
	}

	key, err := h.Local.ResolveToken(c.Param("token"))
	if err != nil {
		utils.Forbidden(c, "Invalid or expired download link")
		return
	}

	r, info, err := h.Local.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.NotFound(c, "File not found")
			return
		}
		utils.InternalServerError(c, "Failed to open file")
		return
	}
	defer r.Close()

	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		utils.InternalServerError(c, "Failed to read file")
		return
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		utils.InternalServerError(c, "Failed to read file")
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), mtype.String(), r, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	})
}

// DeleteFile deletes a file's bytes and record. Unknown ids succeed.
func (h *MedicalFileHandler) DeleteFile(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.Service.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	message := "File deleted successfully"
	if !deleted {
		message = "File already deleted"
	}
	utils.Success(c, message, gin.H{"id": id, "deleted": deleted})
}

func (h *MedicalFileHandler) respondError(c *gin.Context, err error) {
	var uerr *medfiles.UploadError
	if !errors.As(err, &uerr) {
		h.Logger.Error("unexpected error", "path", c.Request.URL.Path, "err", err)
		utils.InternalServerError(c, "Internal error")
		return
	}

	status := statusForError(uerr)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "path", c.Request.URL.Path, "reason", uerr.Reason, "err", uerr.Err)
	}
	if uerr.Kind == medfiles.KindNotFound {
		utils.NotFound(c, "File not found")
		return
	}
	utils.Error(c, status, uerr.Reason)
}

// statusForError maps a per-file failure to an HTTP status.
func statusForError(err *medfiles.UploadError) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Kind {
	case medfiles.KindValidation:
		switch err.Reason {
		case medfiles.ReasonSizeLimit:
			return http.StatusRequestEntityTooLarge
		case medfiles.ReasonTypeNotAllowed:
			return http.StatusUnsupportedMediaType
		default:
			return http.StatusBadRequest
		}
	case medfiles.KindTransport:
		return http.StatusBadGateway
	case medfiles.KindTimeout:
		return http.StatusGatewayTimeout
	case medfiles.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// parseMultipart reads the multipart body once so binding and file access
// share it. A body cut off by the size limit is answered with 413.
func parseMultipart(c *gin.Context) bool {
	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		utils.BadRequest(c, "Invalid multipart form: "+err.Error())
		return false
	}
	return true
}

func rejection(out medfiles.Outcome) utils.RejectionData {
	r := utils.RejectionData{FileName: out.FileName, Reason: out.State.Reason}
	if out.Err != nil {
		r.Detail = out.Err.Detail
	}
	return r
}

// readBlob loads an uploaded part. The declared content type is kept for
// display; when missing or generic it is sniffed from the bytes.
func readBlob(header *multipart.FileHeader, categoryHint string) (medfiles.FileBlob, error) {
	f, err := header.Open()
	if err != nil {
		return medfiles.FileBlob{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return medfiles.FileBlob{}, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = mimetype.Detect(data).String()
	}

	return medfiles.FileBlob{
		Name:         header.Filename,
		ContentType:  contentType,
		Data:         data,
		CategoryHint: categoryHint,
	}, nil
}
