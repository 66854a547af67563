package main

import (
	"log"
	"os"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/order"
	"github.com/mekesim/backend/core/user"
	emailsvc "github.com/mekesim/backend/services/email"
	"github.com/mekesim/backend/storage/database"
	sqlxrepos "github.com/mekesim/backend/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	usrRepo := sqlxrepos.NewUserRepository(db)
	courseRepo := sqlxrepos.NewCourseRepository(db)
	orderRepo := sqlxrepos.NewOrderRepository(db)
	mailSvc := emailsvc.NewConsoleService(conf)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrRepo:  usrRepo,
		usrSvc:   user.NewService(conf, usrRepo, mailSvc),
		orderSvc: order.NewService(conf, orderRepo, courseRepo, usrRepo, mailSvc),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
