package essay

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"reditto/internal/auth"
	"reditto/internal/grader"
	"reditto/internal/webhook"
	"reditto/pkg/models"
)

const (
	minEssayChars = 200
	maxEssayChars = 5000
	maxTopicChars = 200

	maxImageBytes   = 10 << 20
	minExtractedLen = 50
)

// Broadcaster pushes history events to the owner's connected clients.
type Broadcaster interface {
	Broadcast(userID, event string, payload any)
}

type Handler struct {
	Repo    *Repo
	Webhook *webhook.Client
	Grader  *grader.Client
	Feed    Broadcaster
	Logger  *slog.Logger
}

func NewHandler(repo *Repo, wh *webhook.Client, gr *grader.Client, feed Broadcaster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Repo: repo, Webhook: wh, Grader: gr, Feed: feed, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/essays/correct", h.correct)
	rg.POST("/essays/analyze", h.analyze)
	rg.POST("/essays/extract-text", h.extractText)
	rg.GET("/essays", h.list)
	rg.GET("/essays/:id", h.get)
	rg.DELETE("/essays/:id", h.delete)
}

type correctReq struct {
	EssayText string `json:"essayText"`
	Topic     string `json:"topic"`
}

// sanitizeEssay strips angle brackets so submitted text cannot carry
// markup into downstream prompts or stored history.
func sanitizeEssay(s string) string {
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	return strings.TrimSpace(s)
}

// isFormRequest reports whether the client sent a form body instead
// of JSON. Mobile clients upload essay photos as multipart forms.
func isFormRequest(c *gin.Context) bool {
	ct := c.ContentType()
	return ct == "multipart/form-data" || ct == "application/x-www-form-urlencoded"
}

func (h *Handler) validateSubmission(c *gin.Context) (essayText, topic string, ok bool) {
	var req correctReq
	if isFormRequest(c) {
		req.EssayText = c.PostForm("essayText")
		req.Topic = c.PostForm("topic")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON inválido"})
		return "", "", false
	}

	topic = strings.TrimSpace(req.Topic)
	if topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "O tema da redação é obrigatório"})
		return "", "", false
	}
	if utf8.RuneCountInString(topic) > maxTopicChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "O tema deve ter no máximo 200 caracteres"})
		return "", "", false
	}

	// bounds count characters, not bytes; accented text is the norm
	essayText = sanitizeEssay(req.EssayText)
	if utf8.RuneCountInString(essayText) < minEssayChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A redação deve ter pelo menos 200 caracteres"})
		return "", "", false
	}
	if utf8.RuneCountInString(essayText) > maxEssayChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A redação deve ter no máximo 5000 caracteres"})
		return "", "", false
	}
	return essayText, topic, true
}

// correct sends the essay through the automation webhook and
// normalizes whatever shape comes back.
func (h *Handler) correct(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
		return
	}

	essayText, topic, ok := h.validateSubmission(c)
	if !ok {
		return
	}

	raw, err := h.Webhook.Call(c.Request.Context(), webhook.BuildPayload(webhook.Input{
		Text:  essayText,
		Topic: topic,
	}))
	if err != nil {
		h.upstreamError(c, err)
		return
	}

	result := webhook.Normalize(raw)
	result.OriginalEssay = essayText
	if result.Topic == "" {
		result.Topic = topic
	}

	h.persist(c, claims.UserID, essayText, topic, &result)
	c.JSON(http.StatusOK, result)
}

// analyze scores the essay directly against the rubric gateway. A
// reply the parser cannot read fails the request instead of being
// papered over.
func (h *Handler) analyze(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
		return
	}

	essayText, topic, ok := h.validateSubmission(c)
	if !ok {
		return
	}

	result, err := h.Grader.AnalyzeEssay(c.Request.Context(), essayText, topic)
	if err != nil {
		if err == grader.ErrInvalidResponse {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		h.upstreamError(c, err)
		return
	}

	h.persist(c, claims.UserID, essayText, topic, result)
	c.JSON(http.StatusOK, result)
}

type extractTextReq struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
}

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

func (h *Handler) extractText(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
		return
	}

	var (
		data []byte
		mime string
		err  error
	)
	if isFormRequest(c) {
		data, mime, err = readImageForm(c)
	} else {
		var req extractTextReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "JSON inválido"})
			return
		}
		data, mime, err = decodeImage(req.ImageBase64, req.MimeType)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Imagem inválida, envie um arquivo PNG, JPEG ou WebP"})
		return
	}
	if len(data) > maxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A imagem deve ter no máximo 10MB"})
		return
	}
	if !allowedImageTypes[mime] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato de imagem não suportado, use PNG, JPEG ou WebP"})
		return
	}

	text, err := h.Grader.ExtractText(c.Request.Context(), data, mime)
	if err != nil {
		if err == grader.ErrInvalidResponse {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		h.upstreamError(c, err)
		return
	}

	if len(text) < minExtractedLen {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Não foi possível ler a redação na imagem, tente uma foto mais nítida",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"essayText": text})
}

// readImageForm pulls the uploaded file from a multipart form. The
// part's declared content type wins; missing or generic types are
// sniffed from the bytes.
func readImageForm(c *gin.Context) ([]byte, string, error) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = webhook.SniffImageMIME(data)
	}
	if mime == "image/jpg" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

// decodeImage accepts either a raw base64 string plus mime type or a
// full data URI.
func decodeImage(b64, mime string) ([]byte, string, error) {
	if strings.HasPrefix(b64, "data:") {
		rest := strings.TrimPrefix(b64, "data:")
		semi := strings.Index(rest, ";base64,")
		if semi < 0 {
			return nil, "", base64.CorruptInputError(0)
		}
		mime = rest[:semi]
		b64 = rest[semi+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", err
	}
	if mime == "image/jpg" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

func (h *Handler) list(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
		return
	}

	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("offset"), 0)

	essays, err := h.Repo.ListByUser(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		h.Logger.Error("list essays failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao carregar o histórico"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"limit":  limit,
		"offset": offset,
		"items":  essays,
	})
}

func (h *Handler) get(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
		return
	}

	id, ok := parseID(c)
	if !ok {
		return
	}

	e, err := h.Repo.GetByID(c.Request.Context(), id, claims.UserID)
	if err != nil {
		h.Logger.Error("get essay failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao carregar a redação"})
		return
	}
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Redação não encontrada"})
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) delete(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
		return
	}

	id, ok := parseID(c)
	if !ok {
		return
	}

	deleted, err := h.Repo.Delete(c.Request.Context(), id, claims.UserID)
	if err != nil {
		h.Logger.Error("delete essay failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao excluir a redação"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Redação não encontrada"})
		return
	}

	if h.Feed != nil {
		h.Feed.Broadcast(claims.UserID, "essay.deleted", gin.H{"id": id})
	}
	c.JSON(http.StatusOK, gin.H{"status": "excluída"})
}

// persist saves the graded essay unless an identical row already
// exists. Storage failures are logged but never fail the request; the
// user still gets their correction.
func (h *Handler) persist(c *gin.Context, userID, essayText, topic string, result *models.CanonicalResult) {
	ctx := c.Request.Context()

	dup, err := h.Repo.ExistsDuplicate(ctx, userID, essayText, result.FinalScore)
	if err != nil {
		h.Logger.Error("essay duplicate check failed", "err", err)
		return
	}
	if dup {
		return
	}

	saved, err := h.Repo.Create(ctx, models.Essay{
		UserID:       userID,
		Topic:        topic,
		EssayText:    essayText,
		FinalScore:   result.FinalScore,
		Competencies: result.Competencies,
		Feedback:     result.Feedback,
	})
	if err != nil {
		h.Logger.Error("save essay failed", "err", err)
		return
	}

	if h.Feed != nil && saved != nil {
		h.Feed.Broadcast(userID, "essay.saved", saved)
	}
}

// upstreamError hides the failure classification from callers: every
// upstream status collapses to the same generic 500. Only the
// classification in the logs tells a rate limit from an outage.
func (h *Handler) upstreamError(c *gin.Context, err error) {
	kind := webhook.KindOf(err)
	h.Logger.Error("upstream call failed", "kind", kind, "err", err)

	if kind == webhook.KindTimeout {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "A análise demorou demais, tente novamente"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": webhook.GenericMessage})
}

func parseID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identificador inválido"})
		return 0, false
	}
	return id, true
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
