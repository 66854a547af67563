package tests

import (
	"log"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/mekesim/backend/apps/api/echo"
	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/access"
	"github.com/mekesim/backend/core/course"
	"github.com/mekesim/backend/core/order"
	"github.com/mekesim/backend/core/user"
	emailsvc "github.com/mekesim/backend/services/email"
	logsvc "github.com/mekesim/backend/services/logger"
	dummydb "github.com/mekesim/backend/storage/database/dummy"
	testutil "github.com/mekesim/backend/tests"
)

func TestMain(m *testing.M) {
	conf = testutil.NewConfig()
	conf.Debug = false // keep the error handler's response shapes stable

	// set up DB & repos
	db, _ = dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)
	courseRepo = dummydb.NewCourseRepository(db)
	orderRepo = dummydb.NewOrderRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(conf, usrRepo, mailSvc)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	course.RegisterValidators(validate, translator)
	order.RegisterValidators(validate, translator)

	courseSvc := course.NewService(courseRepo, validate)
	orderSvc := order.NewService(conf, orderRepo, courseRepo, usrRepo, mailSvc)
	resolver := access.NewResolver(courseRepo, orderRepo)

	// set up server
	app = NewServer(
		&Options{
			Conf:           conf,
			Logger:         logsvc.NewConsoleLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags)),
			DisableReqLogs: true,
			UserSvc:        usrSvc,
			CourseSvc:      courseSvc,
			OrderSvc:       orderSvc,
			Resolver:       resolver,
			Validate:       validate,
			Translator:     translator,
		},
	)

	os.Exit(m.Run())
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
