package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mekesim/backend/core/access"
	"github.com/mekesim/backend/core/course"
	"github.com/mekesim/backend/core/user"
)

type courseApi struct {
	svc      *course.Service
	usrSvc   *user.Service
	resolver *access.Resolver
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := courseApi{
		svc:      opts.CourseSvc,
		usrSvc:   opts.UserSvc,
		resolver: opts.Resolver,
		validate: opts.Validate,
	}

	cg := g.Group("/courses")

	// browsing is open; lesson content is gated by the resolver, which also
	// handles the anonymous case
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.GET("/:id/lessons", api.lessons, optionalJWT(jwt))
	cg.GET("/lessons/:id", api.lesson, optionalJWT(jwt))

	// admin endpoints; middleware is attached per route because an
	// empty-prefix group would register Any("") and clobber the open
	// GET route above
	cg.POST("", api.create, jwt, adminMiddleware())
	cg.POST("/:id/lessons", api.addLesson, jwt, adminMiddleware())
}

// optionalJWT runs the JWT middleware only when a token is supplied, so the
// endpoint stays reachable anonymously.
func optionalJWT(jwt echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if ctx.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(ctx)
			}
			return jwt(next)(ctx)
		}
	}
}

// contextProfileOrNil resolves the acting profile, or nil for anonymous
// visitors.
func (api *courseApi) contextProfileOrNil(ctx echo.Context) (*user.Profile, error) {
	if _, err := getContextClaims(ctx); err != nil {
		return nil, nil // not authenticated
	}
	prof, err := getContextProfile(ctx, api.usrSvc)
	if err != nil {
		return nil, errors.Wrap(err, "getting context profile")
	}
	return &prof, nil
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) lessons(ctx echo.Context) error {
	c := ctx.Request().Context()

	crs, err := api.svc.GetByID(c, ctx.Param("id"))
	if err != nil {
		return err
	}

	prof, err := api.contextProfileOrNil(ctx)
	if err != nil {
		return err
	}
	if err := api.resolver.CanAccessCourseLessons(c, prof, crs); err != nil {
		return err
	}

	lessons, err := api.svc.Lessons(c, crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []course.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *courseApi) lesson(ctx echo.Context) error {
	c := ctx.Request().Context()

	les, err := api.svc.GetLesson(c, ctx.Param("id"))
	if err != nil {
		return err
	}

	prof, err := api.contextProfileOrNil(ctx)
	if err != nil {
		return err
	}
	if err := api.resolver.CanAccessLesson(c, prof, les); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, les)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) addLesson(ctx echo.Context) error {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}

	les, err := api.svc.AddLesson(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, les)
}
