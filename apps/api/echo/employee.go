package echoapi

import (
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core/employee"
)

type employeeApi struct {
	svc      *employee.Service
	validate *validator.Validate
}

func registerEmployeeAPI(g *echo.Group, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := employeeApi{
		svc:      deps.EmployeeSvc,
		validate: deps.Validate,
	}

	eg := g.Group("/employees", authed)
	eg.GET("", api.query)
	eg.GET("/roles", api.queryRoles)
	eg.GET("/me", api.me)
	eg.POST("", api.create, adminMiddleware())
	eg.DELETE("", api.destroyMultiple, adminMiddleware())

	// detail endpoints
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id", api.update, selfOrAdminMiddleware())
	eg.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *employeeApi) create(ctx echo.Context) error {
	var data employee.NewEmployee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEmployee")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	emp, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating employee")
	}
	return ctx.JSON(http.StatusCreated, emp)
}

func (api *employeeApi) query(ctx echo.Context) error {
	var filter employee.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []employee.Employee{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	emps, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying employees")
	}
	if emps == nil {
		emps = []employee.Employee{}
	}
	return ctx.JSON(http.StatusOK, emps)
}

func (api *employeeApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, employee.Roles)
}

func (api *employeeApi) me(ctx echo.Context) error {
	emp, err := getContextEmployee(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context employee")
	}
	return ctx.JSON(http.StatusOK, emp)
}

func (api *employeeApi) retrieve(ctx echo.Context) error {
	emp, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding employee by ID")
	}
	return ctx.JSON(http.StatusOK, emp)
}

func (api *employeeApi) update(ctx echo.Context) error {
	emp, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding employee by ID")
	}

	var data employee.UpdateEmployee
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEmployee")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin() {
		// `IsActive` and `Role` can only be changed by admin
		if data.IsActive != nil || (data.Role != "" && data.Role != emp.Role) {
			return errHttpForbidden
		}
	}

	data.Clean(emp)
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	emp, err = api.svc.Update(ctx.Request().Context(), emp.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating employee")
	}
	return ctx.JSON(http.StatusOK, emp)
}

func (api *employeeApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// ctx employee cannot delete themselves
	id := ctx.Param("id")
	if id == claims.Subject {
		return errHttpForbidden
	}

	if _, err = api.svc.GetByID(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "finding employee by ID")
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting employee")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *employeeApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if len(query.IDs) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctx employee cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if slices.Contains(query.IDs, claims.Subject) {
		return errHttpForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting employees")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type DestroyMultipleRequest struct {
	IDs []string `query:"id"`
}
