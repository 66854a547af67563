package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/mekesim/backend/core/order"
	"github.com/mekesim/backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	usrRepo  user.Repository
	usrSvc   *user.Service
	orderSvc *order.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin] - create or update a user; the password is prompted next")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset a user's password")
	fmt.Println("  grantvip -username USERNAME|EMAIL [-days DAYS] - grant or extend VIP membership")
	fmt.Println("  confirmorder -number ORDER_NUMBER -method METHOD - mark an order paid")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Make the user an admin.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	grantVIPCmd := flag.NewFlagSet("grantvip", flag.ExitOnError)
	grantVIPUname := grantVIPCmd.String("username", "", "The user's username or email.")
	grantVIPDays := grantVIPCmd.Int("days", 0, "VIP duration in days; 0 uses the configured default.")

	confirmOrderCmd := flag.NewFlagSet("confirmorder", flag.ExitOnError)
	confirmOrderNumber := confirmOrderCmd.String("number", "", "The order number.")
	confirmOrderMethod := confirmOrderCmd.String("method", "", "The payment method (manual, alipay or wechat).")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "grantvip":
		if err := grantVIPCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantVIPUname == "" {
			grantVIPCmd.Usage()
			return errHelp
		}
		return cli.grantVIP(*grantVIPUname, *grantVIPDays)
	case "confirmorder":
		if err := confirmOrderCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *confirmOrderNumber == "" || *confirmOrderMethod == "" {
			confirmOrderCmd.Usage()
			return errHelp
		}
		return cli.confirmOrder(*confirmOrderNumber, *confirmOrderMethod)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
