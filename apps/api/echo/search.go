package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/course"
	"github.com/mekesim/backend/core/user"
)

var searchDefaultLimit = 20

type searchApi struct {
	courseSvc *course.Service
	usrSvc    *user.Service
}

func registerSearchAPI(g *echo.Group, opts *Options) {
	api := searchApi{courseSvc: opts.CourseSvc, usrSvc: opts.UserSvc}
	g.GET("/search", api.search)
}

// search does a plain substring search over courses (title, description) and
// users (name, username, email). No ranking, first matches win; each section
// is capped at limit separately.
func (api *searchApi) search(ctx echo.Context) error {
	keyword := ctx.QueryParam("q")
	limit := searchDefaultLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	courses, err := api.courseSvc.Search(ctx.Request().Context(), keyword, limit)
	if err != nil {
		return errors.Wrap(err, "searching courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}

	// an empty keyword matches nothing; querying with an empty filter would
	// list every user
	users := []user.User{}
	if core.CleanString(keyword) != "" {
		users, err = api.usrSvc.Query(ctx.Request().Context(), &user.QueryFilter{Search: keyword})
		if err != nil {
			return errors.Wrap(err, "searching users")
		}
		if len(users) > limit {
			users = users[:limit]
		}
		if users == nil {
			users = []user.User{}
		}
	}

	return ctx.JSON(http.StatusOK, SearchResponse{Courses: courses, Users: users})
}

type SearchResponse struct {
	Courses []course.Course `json:"courses"`
	Users   []user.User     `json:"users"`
}
