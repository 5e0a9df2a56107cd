package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{svc: deps.AttendanceSvc}

	ag := g.Group("/attendance", authed)
	ag.GET("", api.query)
	ag.POST("", api.upload, adminMiddleware())
}

type UploadAttendanceRequest struct {
	Records []attendance.NewRecord `json:"records"`
}

func (api *attendanceApi) upload(ctx echo.Context) error {
	var data UploadAttendanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UploadAttendanceRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	res, err := api.svc.Upload(ctx.Request().Context(), claims.Subject, data.Records)
	if err != nil {
		return errors.Wrap(err, "uploading attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	var filter attendance.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	recs, err := api.svc.Query(ctx.Request().Context(), claims.Subject, claims.IsAdmin(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, recs)
}
