package lesson

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/edumorph/core/internal/models"
	"github.com/edumorph/core/internal/modules/pipeline/artifact"
	"github.com/edumorph/core/internal/pkg/pagination"
	"github.com/edumorph/core/internal/pkg/response"
	"github.com/edumorph/core/internal/pkg/taskqueue"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc            *Service
	taskSvc        *taskqueue.Service
	maxUploadBytes int64
}

func NewHandler(svc *Service, taskSvc *taskqueue.Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, taskSvc: taskSvc, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	lessons := api.Group("/lessons")
	{
		lessons.POST("/ingest/text", h.ingestText)
		lessons.POST("/ingest/file", h.ingestFile)
		lessons.POST("/ingest/link", h.ingestLink)
		lessons.GET("", h.list)
		lessons.GET("/:id", h.get)
		lessons.GET("/:id/flashcards", h.flashcards)
		lessons.GET("/:id/quiz", h.quiz)
		lessons.POST("/:id/regenerate", h.regenerate)
		lessons.DELETE("/:id", h.delete)
	}

	tasks := api.Group("/tasks")
	{
		tasks.GET("", h.listTasks)
		tasks.GET("/:id", h.getTask)
		tasks.POST("/:id/cancel", h.cancelTask)
		tasks.DELETE("/:id", h.deleteTask)
	}
}

func (h *Handler) ingestText(c *gin.Context) {
	var dto IngestTextDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(dto.Text) == "" {
		response.UnprocessableEntity(c, "text must not be empty")
		return
	}

	res, err := h.svc.IngestText(c.Request.Context(), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	h.respondIngest(c, res)
}

func (h *Handler) ingestFile(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file field")
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		response.PayloadTooLarge(c, "uploaded file exceeds the size limit")
		return
	}

	sourceType, ok := detectSourceType(fileHeader.Filename)
	if !ok {
		response.UnprocessableEntity(c, "unsupported file type, expected pdf, text, audio or video")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if len(data) == 0 {
		response.UnprocessableEntity(c, "uploaded file is empty")
		return
	}

	opts, err := parseOptionsField(c.PostForm("options"))
	if err != nil {
		response.BadRequest(c, "invalid options field: "+err.Error())
		return
	}

	res, err := h.svc.IngestFile(c.Request.Context(), sourceType, fileHeader.Filename,
		data, c.PostForm("title"), c.PostForm("subject"), opts)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	h.respondIngest(c, res)
}

func (h *Handler) ingestLink(c *gin.Context) {
	var dto IngestLinkDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.IngestLink(c.Request.Context(), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	h.respondIngest(c, res)
}

// respondIngest returns the full lesson when generation already finished
// (cache hit or reuse of an identical ready lesson), otherwise 202 with the
// task to poll.
func (h *Handler) respondIngest(c *gin.Context, res *IngestResult) {
	if res.Lesson.Status == models.LessonStatusReady {
		response.OK(c, toLessonResponse(res.Lesson, true))
		return
	}

	out := ingestResponse{LessonID: res.Lesson.ID, Status: res.Lesson.Status}
	if res.Task != nil {
		out.TaskID = res.Task.ID
	}
	response.Accepted(c, out)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	filter := ListFilter{
		Subject:    c.Query("subject"),
		Status:     c.Query("status"),
		SourceType: c.Query("source_type"),
	}

	lessons, pag, err := h.svc.List(c.Request.Context(), q, filter)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	out := make([]lessonResponse, 0, len(lessons))
	for i := range lessons {
		out = append(out, toLessonResponse(&lessons[i], false))
	}
	response.Paged(c, out, pag)
}

func (h *Handler) get(c *gin.Context) {
	l, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if l == nil {
		response.NotFoundMsg(c, "lesson not found")
		return
	}
	response.OK(c, toLessonResponse(l, true))
}

func (h *Handler) flashcards(c *gin.Context) {
	l, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if l == nil {
		response.NotFoundMsg(c, "lesson not found")
		return
	}

	out := make([]flashcardResponse, 0, len(l.Flashcards))
	for _, f := range l.Flashcards {
		out = append(out, toFlashcardResponse(f))
	}
	response.OK(c, out)
}

func (h *Handler) quiz(c *gin.Context) {
	l, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if l == nil {
		response.NotFoundMsg(c, "lesson not found")
		return
	}

	out := make([]questionResponse, 0, len(l.Questions))
	for _, q := range l.Questions {
		out = append(out, toQuestionResponse(q))
	}
	response.OK(c, out)
}

func (h *Handler) regenerate(c *gin.Context) {
	var dto struct {
		Options *GenerationOptionsDTO `json:"options"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	res, err := h.svc.Regenerate(c.Request.Context(), c.Param("id"), dto.Options)
	if err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	if res == nil {
		response.NotFoundMsg(c, "lesson not found")
		return
	}
	h.respondIngest(c, res)
}

func (h *Handler) delete(c *gin.Context) {
	l, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if l == nil {
		response.NotFoundMsg(c, "lesson not found")
		return
	}

	if err := h.svc.Delete(c.Request.Context(), l.ID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) listTasks(c *gin.Context) {
	q := pagination.FromContext(c)

	var taskType *string
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		taskType = &v
	}
	var status *taskqueue.TaskStatus
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		st := taskqueue.TaskStatus(v)
		status = &st
	}

	tasks, total, err := h.taskSvc.List(c.Request.Context(), q.Page, q.Size, taskType, status)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
	response.Paged(c, tasks, response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	})
}

func (h *Handler) getTask(c *gin.Context) {
	task, err := h.taskSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task == nil {
		response.NotFoundMsg(c, "task not found")
		return
	}
	response.OK(c, task)
}

func (h *Handler) cancelTask(c *gin.Context) {
	if err := h.taskSvc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Conflict(c, err.Error())
		return
	}
	response.NoContent(c)
}

func (h *Handler) deleteTask(c *gin.Context) {
	if err := h.taskSvc.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// detectSourceType maps an upload filename extension to a source type.
func detectSourceType(filename string) (artifact.SourceType, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return artifact.SourcePDF, true
	case ".txt", ".md", ".markdown":
		return artifact.SourceText, true
	case ".mp3", ".wav", ".m4a", ".ogg", ".flac", ".aac":
		return artifact.SourceAudio, true
	case ".mp4", ".mov", ".mkv", ".webm", ".avi":
		return artifact.SourceVideo, true
	default:
		return "", false
	}
}

func parseOptionsField(raw string) (*GenerationOptionsDTO, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var dto GenerationOptionsDTO
	if err := json.Unmarshal([]byte(raw), &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}
