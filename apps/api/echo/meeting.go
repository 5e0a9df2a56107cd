package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core/meeting"
)

type meetingApi struct {
	svc      *meeting.Service
	validate *validator.Validate
}

func registerMeetingAPI(g *echo.Group, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := meetingApi{
		svc:      deps.MeetingSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/meetings", authed)
	mg.POST("", api.create)
	mg.GET("", api.query)
	mg.GET("/:id", api.retrieve)
	mg.DELETE("/:id", api.destroy)
}

func participant(ctx echo.Context) (meeting.Participant, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return meeting.Participant{}, err
	}
	return meeting.Participant{ID: claims.Subject, Email: claims.Email}, nil
}

func (api *meetingApi) create(ctx echo.Context) error {
	var data meeting.NewMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeeting")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	m, err := api.svc.Create(ctx.Request().Context(), claims.Subject, claims.Name, data)
	if err != nil {
		return errors.Wrap(err, "creating meeting")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *meetingApi) query(ctx echo.Context) error {
	p, err := participant(ctx)
	if err != nil {
		return errors.Wrap(err, "getting participant")
	}
	meetings, err := api.svc.List(ctx.Request().Context(), p, bindLimit(ctx))
	if err != nil {
		return errors.Wrap(err, "listing meetings")
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *meetingApi) retrieve(ctx echo.Context) error {
	p, err := participant(ctx)
	if err != nil {
		return errors.Wrap(err, "getting participant")
	}
	m, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), p)
	if err != nil {
		return errors.Wrap(err, "getting meeting")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *meetingApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	return ctx.NoContent(http.StatusNoContent)
}
