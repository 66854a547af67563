package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mekesim/backend/core/order"
	"github.com/mekesim/backend/core/user"
)

type orderApi struct {
	svc      *order.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerOrderAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := orderApi{
		svc:      opts.OrderSvc,
		usrSvc:   opts.UserSvc,
		validate: opts.Validate,
	}

	og := g.Group("/orders", jwt)
	og.POST("", api.create)
	og.POST("/confirm", api.confirm, adminMiddleware())
	og.POST("/:number/cancel", api.cancel)
	og.GET("/:number", api.retrieve)
}

// Handlers

// create opens an unpaid order. When an unpaid order for the same course is
// already open it is returned as-is with 200 instead of 201.
func (api *orderApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data order.NewOrder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ord, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		if errors.Cause(err) == order.ErrDuplicateUnpaidOrder {
			return ctx.JSON(http.StatusOK, ord)
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, ord)
}

func (api *orderApi) confirm(ctx echo.Context) error {
	prof, err := getContextProfile(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}

	var data order.ConfirmOrder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmOrder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ord, err := api.svc.Confirm(ctx.Request().Context(), prof, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ord)
}

func (api *orderApi) cancel(ctx echo.Context) error {
	prof, err := getContextProfile(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}

	ord, err := api.svc.Cancel(ctx.Request().Context(), prof, ctx.Param("number"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ord)
}

func (api *orderApi) retrieve(ctx echo.Context) error {
	prof, err := getContextProfile(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}

	ord, err := api.svc.GetByNumber(ctx.Request().Context(), ctx.Param("number"))
	if err != nil {
		return err
	}
	if !prof.IsAdmin() && ord.UserID != prof.UserID {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, ord)
}
