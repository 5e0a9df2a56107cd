package echoapi

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/message"
)

// maxUploadSize bounds the multipart form of a file upload.
const maxUploadSize = 25 << 20

type messageApi struct {
	svc    *message.Service
	logger core.Logger
}

func registerMessageAPI(g *echo.Group, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := messageApi{
		svc:    deps.MessageSvc,
		logger: deps.Logger,
	}

	g.GET("/messages", api.history, authed)

	fg := g.Group("/files", authed)
	fg.POST("/upload", api.upload)
	fg.GET("/:id", api.download)
}

func sender(ctx echo.Context) (message.Sender, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return message.Sender{}, err
	}
	return message.Sender{ID: claims.Subject, Name: claims.Name}, nil
}

func (api *messageApi) history(ctx echo.Context) error {
	var q message.Query
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to Query")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	q.EmployeeID = claims.Subject

	msgs, err := api.svc.History(ctx.Request().Context(), q)
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) upload(ctx echo.Context) error {
	ctx.Request().Body = http.MaxBytesReader(ctx.Response(), ctx.Request().Body, maxUploadSize)

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(core.ErrMissingRequiredField, core.FieldError{Field: "file", Error: "file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	from, err := sender(ctx)
	if err != nil {
		return errors.Wrap(err, "getting sender")
	}
	nm := message.NewMessage{
		Content:     ctx.FormValue("content"),
		ChannelID:   ctx.FormValue("channel_id"),
		RecipientID: ctx.FormValue("recipient_id"),
	}
	meta := message.FileMeta{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(echo.HeaderContentType),
	}

	msg, err := api.svc.ShareFile(ctx.Request().Context(), from, nm, f, meta)
	if err != nil {
		return errors.Wrap(err, "sharing file")
	}
	return ctx.JSON(http.StatusCreated, msg.File)
}

func (api *messageApi) download(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	file, rc, err := api.svc.OpenFile(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer func() {
		if cErr := rc.Close(); cErr != nil {
			api.logger.Warn(fmt.Sprintf("closing file %s: %v", file.ID, cErr), cErr)
		}
	}()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	if file.Size > 0 {
		ctx.Response().Header().Set(echo.HeaderContentLength, fmt.Sprint(file.Size))
	}
	return ctx.Stream(http.StatusOK, file.ContentType, rc)
}
