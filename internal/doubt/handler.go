package doubt

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
	"reditto/internal/webhook"
	"reditto/pkg/models"
)

const (
	minDoubtChars = 30
	maxDoubtChars = 2000

	maxImageBytes = 10 << 20
	maxImages     = 5
)

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// Broadcaster pushes history events to the owner's connected clients.
type Broadcaster interface {
	Broadcast(userID, event string, payload any)
}

type Handler struct {
	Repo    *Repo
	Webhook *webhook.Client
	Feed    Broadcaster
	Logger  *slog.Logger
}

func NewHandler(repo *Repo, wh *webhook.Client, feed Broadcaster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Repo: repo, Webhook: wh, Feed: feed, Logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/doubts", h.create)
	rg.GET("/doubts", h.list)
	rg.GET("/doubts/:id", h.get)
	rg.DELETE("/doubts/:id", h.delete)
}

type createReq struct {
	Subject      string   `json:"subject"`
	DoubtText    string   `json:"doubtText"`
	ImagesBase64 []string `json:"imagesBase64"`
}

func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida, faça login novamente"})
		return
	}

	var req createReq
	if isFormRequest(c) {
		req.Subject = c.PostForm("subject")
		req.DoubtText = c.PostForm("doubtText")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON inválido"})
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A matéria é obrigatória"})
		return
	}

	// bounds count characters, not bytes; accented text is the norm
	doubtText := strings.TrimSpace(req.DoubtText)
	if utf8.RuneCountInString(doubtText) < minDoubtChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A dúvida deve ter pelo menos 30 caracteres"})
		return
	}
	if utf8.RuneCountInString(doubtText) > maxDoubtChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A dúvida deve ter no máximo 2000 caracteres"})
		return
	}

	var (
		images [][]byte
		mimes  []string
		ok     bool
	)
	if isFormRequest(c) {
		images, mimes, ok = h.readFormImages(c)
	} else {
		images, mimes, ok = h.decodeImages(c, req.ImagesBase64)
	}
	if !ok {
		return
	}

	in := webhook.Input{
		DoubtText: doubtText,
		Subject:   subject,
	}
	if len(images) == 1 {
		in.Image = images[0]
		in.ImageMIME = mimes[0]
	} else if len(images) > 1 {
		in.Images = images
		in.ImageMIMEs = mimes
	}

	raw, err := h.Webhook.Call(c.Request.Context(), webhook.BuildPayload(in))
	if err != nil {
		h.upstreamError(c, err)
		return
	}

	result := webhook.Normalize(raw)
	if result.OriginalDoubt == "" {
		result.OriginalDoubt = doubtText
	}
	for i, img := range images {
		uri := webhook.DataURI(img, mimes[i])
		result.DoubtImages = append(result.DoubtImages, uri)
		if result.DoubtImageURL == "" {
			result.DoubtImageURL = uri
		}
	}

	h.persist(c, claims.UserID, subject, doubtText, &result)
	c.JSON(http.StatusOK, result)
}

// isFormRequest reports whether the client sent a form body instead
// of JSON. Mobile clients upload question photos as multipart forms.
func isFormRequest(c *gin.Context) bool {
	ct := c.ContentType()
	return ct == "multipart/form-data" || ct == "application/x-www-form-urlencoded"
}

// readFormImages collects uploaded files from a multipart form.
// Both "images" and "images[]" field names are accepted.
func (h *Handler) readFormImages(c *gin.Context) ([][]byte, []string, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil, true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formulário inválido"})
		return nil, nil, false
	}

	files := form.File["images"]
	if len(files) == 0 {
		files = form.File["images[]"]
	}
	if len(files) > maxImages {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Envie no máximo 5 imagens"})
		return nil, nil, false
	}

	images := make([][]byte, 0, len(files))
	mimes := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Imagem inválida, envie um arquivo PNG, JPEG ou WebP"})
			return nil, nil, false
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Imagem inválida, envie um arquivo PNG, JPEG ou WebP"})
			return nil, nil, false
		}
		if len(data) > maxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cada imagem deve ter no máximo 10MB"})
			return nil, nil, false
		}
		mime := fh.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = webhook.SniffImageMIME(data)
		}
		if mime == "image/jpg" {
			mime = "image/jpeg"
		}
		if !allowedImageTypes[mime] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Formato de imagem não suportado, use PNG, JPEG ou WebP"})
			return nil, nil, false
		}
		images = append(images, data)
		mimes = append(mimes, mime)
	}
	return images, mimes, true
}

func (h *Handler) decodeImages(c *gin.Context, encoded []string) ([][]byte, []string, bool) {
	if len(encoded) > maxImages {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Envie no máximo 5 imagens"})
		return nil, nil, false
	}

	images := make([][]byte, 0, len(encoded))
	mimes := make([]string, 0, len(encoded))
	for _, item := range encoded {
		data, mime, err := decodeImage(item)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Imagem inválida, envie um arquivo PNG, JPEG ou WebP"})
			return nil, nil, false
		}
		if len(data) > maxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cada imagem deve ter no máximo 10MB"})
			return nil, nil, false
		}
		if mime != "" && !allowedImageTypes[mime] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Formato de imagem não suportado, use PNG, JPEG ou WebP"})
			return nil, nil, false
		}
		images = append(images, data)
		mimes = append(mimes, mime)
	}
	return images, mimes, true
}

func decodeImage(b64 string) ([]byte, string, error) {
	mime := ""
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

	doubts, err := h.Repo.ListByUser(c.Request.Context(), claims.UserID, limit, offset)
	if err != nil {
		h.Logger.Error("list doubts failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao carregar o histórico"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"limit":  limit,
		"offset": offset,
		"items":  doubts,
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

	d, err := h.Repo.GetByID(c.Request.Context(), id, claims.UserID)
	if err != nil {
		h.Logger.Error("get doubt failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao carregar a dúvida"})
		return
	}
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dúvida não encontrada"})
		return
	}
	c.JSON(http.StatusOK, d)
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
		h.Logger.Error("delete doubt failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao excluir a dúvida"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dúvida não encontrada"})
		return
	}

	if h.Feed != nil {
		h.Feed.Broadcast(claims.UserID, "doubt.deleted", gin.H{"id": id})
	}
	c.JSON(http.StatusOK, gin.H{"status": "excluída"})
}

// persist stores the answered doubt unless an identical row already
// exists. A storage failure never fails the request.
func (h *Handler) persist(c *gin.Context, userID, subject, doubtText string, result *models.CanonicalResult) {
	ctx := c.Request.Context()

	dup, err := h.Repo.ExistsDuplicate(ctx, userID, doubtText, result.AIResponse)
	if err != nil {
		h.Logger.Error("doubt duplicate check failed", "err", err)
		return
	}
	if dup {
		return
	}

	saved, err := h.Repo.Create(ctx, models.Doubt{
		UserID:        userID,
		Subject:       subject,
		DoubtText:     doubtText,
		DoubtImageURL: result.DoubtImageURL,
		AIResponse:    result.AIResponse,
	})
	if err != nil {
		h.Logger.Error("save doubt failed", "err", err)
		return
	}

	if h.Feed != nil && saved != nil {
		h.Feed.Broadcast(userID, "doubt.saved", saved)
	}
}

// upstreamError hides the failure classification from callers: every
// upstream status collapses to the same generic 500. Only the
// classification in the logs tells a rate limit from an outage.
func (h *Handler) upstreamError(c *gin.Context, err error) {
	kind := webhook.KindOf(err)
	h.Logger.Error("upstream call failed", "kind", kind, "err", err)

	if kind == webhook.KindTimeout {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "A resposta demorou demais, tente novamente"})
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
